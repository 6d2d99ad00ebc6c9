package ingest

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kitako/incomeproof/internal/domain"
)

// Synonym tables for the canonical fields, tried in order. Header matching is
// case-insensitive because extraction lowercases headers.
var (
	dateKeys        = []string{"date", "transaction_date", "txn_date", "datetime"}
	amountKeys      = []string{"amount", "value", "sum", "total"}
	descriptionKeys = []string{"description", "details", "memo", "reference", "particulars"}
	referenceKeys   = []string{"reference", "ref", "transaction_id", "txn_id"}
	typeKeys        = []string{"type", "transaction_type", "txn_type", "debit_credit"}
)

// dateFormats are tried in order; date-only layouts before datetime layouts.
var dateFormats = []string{
	"2006-01-02",
	"01/02/2006",
	"02/01/2006",
	"2006-01-02 15:04:05",
	"01/02/2006 15:04:05",
	"02/01/2006 15:04:05",
}

var incomeKeywords = []string{"salary", "payment", "income", "received", "deposit", "credit"}
var expenseKeywords = []string{"purchase", "payment", "bill", "fee", "charge", "debit"}

// CanonicalFields is one normalized transaction candidate. Amount keeps the
// raw sign; the materializer stores the magnitude and the direction.
type CanonicalFields struct {
	Date        time.Time
	DateGuessed bool

	Amount        decimal.Decimal
	AmountGuessed bool

	Description string
	Reference   string
	Direction   domain.Direction
}

// Normalize maps an extracted row onto canonical fields. The second return is
// false when the row carries no usable date or amount and must be skipped.
func Normalize(row Row) (*CanonicalFields, bool) {
	if line, ok := row[textKey]; ok {
		return normalizeTextLine(line)
	}

	rawDate := firstValue(row, dateKeys)
	rawAmount := firstValue(row, amountKeys)
	if rawDate == "" || rawAmount == "" {
		return nil, false
	}

	f := &CanonicalFields{
		Description: firstValue(row, descriptionKeys),
		Reference:   firstValue(row, referenceKeys),
	}
	f.Date, f.DateGuessed = parseDate(rawDate)

	signed, ok := parseAmount(rawAmount)
	if !ok {
		f.AmountGuessed = true
	}
	f.Amount = signed
	f.Direction = inferDirection(firstValue(row, typeKeys), f.Description, signed)

	return f, true
}

func firstValue(row Row, keys []string) string {
	for _, k := range keys {
		if v := row[k]; v != "" {
			return v
		}
	}
	return ""
}

// parseDate tries the known layouts in order. An unparseable date falls back
// to the current time, flagged so the caller can log it.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, false
		}
	}
	return time.Now(), true
}

// parseAmount strips currency symbols and thousands separators. A
// parenthesized amount is negative, accountant style.
func parseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	clean := strings.NewReplacer("₱", "", "PHP", "", "php", "", ",", "", " ", "").Replace(s)
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}

// inferDirection decides income vs expense: explicit type hint first, then
// description keywords with income terms taking precedence, then the sign of
// the raw amount.
func inferDirection(typeHint, description string, amount decimal.Decimal) domain.Direction {
	hint := strings.ToLower(strings.TrimSpace(typeHint))
	if hint != "" {
		if hint == "out" || strings.Contains(hint, "debit") || strings.Contains(hint, "expense") {
			return domain.DirectionExpense
		}
		if hint == "in" || strings.Contains(hint, "credit") || strings.Contains(hint, "income") {
			return domain.DirectionIncome
		}
	}

	desc := strings.ToLower(description)
	for _, kw := range incomeKeywords {
		if strings.Contains(desc, kw) {
			return domain.DirectionIncome
		}
	}
	for _, kw := range expenseKeywords {
		if strings.Contains(desc, kw) {
			return domain.DirectionExpense
		}
	}

	if amount.Sign() < 0 {
		return domain.DirectionExpense
	}
	return domain.DirectionIncome
}

// Statement-line patterns for text extracted from PDFs: a date anywhere in
// the line and an amount at its end.
var (
	lineDatePattern   = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2}|\d{2}/\d{2}/\d{4})\b`)
	lineAmountPattern = regexp.MustCompile(`((?:₱|PHP)?\s*\(?-?[\d,]+(?:\.\d{1,2})?\)?)\s*$`)
)

// normalizeTextLine pattern-matches one statement line. Lines without both a
// date and a trailing amount are skipped.
func normalizeTextLine(line string) (*CanonicalFields, bool) {
	dateMatch := lineDatePattern.FindString(line)
	amountMatch := lineAmountPattern.FindStringSubmatch(line)
	if dateMatch == "" || amountMatch == nil {
		return nil, false
	}

	desc := strings.Replace(line, dateMatch, "", 1)
	desc = strings.TrimSuffix(desc, amountMatch[0])
	desc = strings.TrimSpace(strings.Trim(desc, " -|"))

	f := &CanonicalFields{Description: desc}
	f.Date, f.DateGuessed = parseDate(dateMatch)

	signed, ok := parseAmount(strings.TrimSpace(amountMatch[1]))
	if !ok {
		return nil, false
	}
	f.Amount = signed
	f.Direction = inferDirection("", desc, signed)

	return f, true
}
