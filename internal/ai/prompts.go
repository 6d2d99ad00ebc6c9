package ai

import (
	"strings"

	"github.com/kitako/incomeproof/internal/domain"
)

// categorizeSystemPrompt encodes the fixed taxonomy for the model. Built once
// at init from the domain category lists so prompt and validation can never
// drift apart.
var categorizeSystemPrompt = buildCategorizeSystemPrompt()

func buildCategorizeSystemPrompt() string {
	var b strings.Builder
	b.WriteString("You are a financial transaction categorizer for informal earners in the Philippines ")
	b.WriteString("(freelancers, market vendors, drivers, online sellers).\n\n")
	b.WriteString("For each transaction decide:\n")
	b.WriteString("- \"direction\": one of income, expense, transfer_in, transfer_out, fee, refund, other\n")
	b.WriteString("- \"category\": one of the predefined categories below\n")
	b.WriteString("- \"confidence\": one of high, medium, low, very_low\n")
	b.WriteString("- \"rationale\": one short sentence explaining the choice\n\n")

	writeGroup := func(title string, cats []domain.Category) {
		b.WriteString(title)
		b.WriteString(": ")
		names := make([]string, len(cats))
		for i, c := range cats {
			names[i] = string(c)
		}
		b.WriteString(strings.Join(names, ", "))
		b.WriteString("\n")
	}
	writeGroup("Income categories", domain.IncomeCategories)
	writeGroup("Expense categories", domain.ExpenseCategories)
	writeGroup("Transfer categories", domain.TransferCategories)
	writeGroup("Fee categories", domain.FeeCategories)
	b.WriteString("Fallback category: other\n\n")

	b.WriteString("Output STRICT JSON only (no comments, no trailing commas, no extra text).\n")
	b.WriteString("Output a JSON array of objects, one per input transaction, each with fields:\n")
	b.WriteString("\"id\", \"direction\", \"category\", \"confidence\", \"rationale\".\n")
	b.WriteString("Echo the input \"id\" unchanged; results are matched by id.\n")
	b.WriteString("Do NOT wrap the response in code fences.\n")
	b.WriteString("Output must begin with \"[\" and end with \"]\".\n")
	return b.String()
}

const summarySystemPrompt = "You are a financial analyst writing for lenders and government agencies " +
	"in the Philippines. Write a short, professional income summary in plain " +
	"English. Be factual, use only the figures provided, and do not invent " +
	"numbers. Output plain text, no Markdown."

// cleanModelJSON strips Markdown fences the model sometimes adds despite
// instructions, then falls back to the outermost [...] span.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}
