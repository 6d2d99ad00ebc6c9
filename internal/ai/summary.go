package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kitako/incomeproof/internal/domain"
)

// SummaryResult is a generated income summary with usage counters.
type SummaryResult struct {
	Summary      string
	InputTokens  int64
	OutputTokens int64
	LatencyMS    int64
}

// Summarizer produces a short professional income summary over a transaction
// set, for embedding in reports.
type Summarizer struct {
	client Client
}

// NewSummarizer wires a Summarizer to a model client.
func NewSummarizer(client Client) *Summarizer {
	return &Summarizer{client: client}
}

// GenerateSummary computes basic stats locally and asks the model to phrase
// them as a professional summary.
func (s *Summarizer) GenerateSummary(ctx context.Context, txs []*domain.Transaction, from, to time.Time) (*SummaryResult, error) {
	var (
		totalIncome   = decimal.Zero
		totalExpenses = decimal.Zero
		incomeCount   int
		byCategory    = map[string]decimal.Decimal{}
	)
	for _, tx := range txs {
		switch tx.Direction {
		case domain.DirectionIncome:
			totalIncome = totalIncome.Add(tx.Amount)
			incomeCount++
			key := string(tx.Category)
			if key == "" {
				key = string(domain.CategoryOther)
			}
			byCategory[key] = byCategory[key].Add(tx.Amount)
		case domain.DirectionExpense:
			totalExpenses = totalExpenses.Add(tx.Amount)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Write a professional income summary for the period %s to %s.\n\n",
		from.Format("2006-01-02"), to.Format("2006-01-02"))
	fmt.Fprintf(&b, "Figures (PHP):\n")
	fmt.Fprintf(&b, "- Total income: %s\n", totalIncome.StringFixed(2))
	fmt.Fprintf(&b, "- Total expenses: %s\n", totalExpenses.StringFixed(2))
	fmt.Fprintf(&b, "- Net income: %s\n", totalIncome.Sub(totalExpenses).StringFixed(2))
	fmt.Fprintf(&b, "- Transactions: %d total, %d income\n", len(txs), incomeCount)
	if len(byCategory) > 0 {
		fmt.Fprintf(&b, "- Income by category:\n")
		for cat, sum := range byCategory {
			fmt.Fprintf(&b, "  - %s: %s\n", cat, sum.StringFixed(2))
		}
	}
	b.WriteString("\nKeep it under 150 words.")

	start := time.Now()
	completion, err := s.client.Complete(ctx, summarySystemPrompt, b.String(), Params{
		Temperature:     0.1,
		MaxOutputTokens: 4000,
	})
	if err != nil {
		return nil, fmt.Errorf("GenerateSummary: model request: %w", err)
	}

	return &SummaryResult{
		Summary:      strings.TrimSpace(completion.Text),
		InputTokens:  completion.InputTokens,
		OutputTokens: completion.OutputTokens,
		LatencyMS:    time.Since(start).Milliseconds(),
	}, nil
}
