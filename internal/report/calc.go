// Package report computes income reports: aggregation over transactions,
// data-quality scoring, anomaly summaries, verification identifiers and the
// downloadable artifact.
package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kitako/incomeproof/internal/domain"
	"github.com/kitako/incomeproof/internal/logger"
	"github.com/kitako/incomeproof/internal/store"
)

// uncategorizedBucket is the breakdown key for transactions with no category.
const uncategorizedBucket = "Uncategorized"

// averageMonthLength converts a day count into months for the average
// monthly income figure.
const averageMonthLength = 30.44

// Calculator aggregates a user's transactions into a report.
type Calculator struct {
	txs     store.Transactions
	reports store.Reports
}

// NewCalculator wires a Calculator to its stores.
func NewCalculator(txs store.Transactions, reports store.Reports) *Calculator {
	return &Calculator{txs: txs, reports: reports}
}

// Compute fills the aggregate fields of a report from the transactions in its
// date range and persists the result. A range with no transactions fails the
// report with a descriptive error instead of producing an empty artifact.
func (c *Calculator) Compute(ctx context.Context, r *domain.IncomeReport) error {
	log := logger.FromContext(ctx)

	txs, err := c.txs.List(ctx, r.UserID, store.TransactionFilter{
		DateFrom: &r.DateFrom,
		DateTo:   &r.DateTo,
	})
	if err != nil {
		return fmt.Errorf("Compute: listing transactions: %w", err)
	}

	if len(txs) == 0 {
		r.Status = domain.ReportStatusFailed
		r.ConfidenceScore = 0
		r.GenerationError = "No transaction data available for the selected period"
		if err := c.reports.Update(ctx, r); err != nil {
			return fmt.Errorf("Compute: recording empty-range failure: %w", err)
		}
		log.Warn().
			Str("report_id", r.ID).
			Msg("report range contains no transactions")
		return nil
	}

	totalIncome := decimal.Zero
	totalExpenses := decimal.Zero
	incomeBreakdown := map[string]decimal.Decimal{}
	expenseBreakdown := map[string]decimal.Decimal{}
	trends := map[string]domain.MonthlyTotals{}
	sourceSet := map[string]bool{}

	for _, tx := range txs {
		bucket := string(tx.Category)
		if bucket == "" {
			bucket = uncategorizedBucket
		}
		month := tx.Date.Format("2006-01")
		mt := trends[month]

		switch tx.Direction {
		case domain.DirectionIncome:
			totalIncome = totalIncome.Add(tx.Amount)
			incomeBreakdown[bucket] = incomeBreakdown[bucket].Add(tx.Amount)
			mt.Income = mt.Income.Add(tx.Amount)
		case domain.DirectionExpense:
			totalExpenses = totalExpenses.Add(tx.Amount)
			expenseBreakdown[bucket] = expenseBreakdown[bucket].Add(tx.Amount)
			mt.Expenses = mt.Expenses.Add(tx.Amount)
		}
		trends[month] = mt

		if tx.SourcePlatform != "" {
			sourceSet[tx.SourcePlatform] = true
		}
	}

	sources := make([]string, 0, len(sourceSet))
	for s := range sourceSet {
		sources = append(sources, s)
	}

	r.TotalIncome = totalIncome
	r.TotalExpenses = totalExpenses
	r.NetIncome = totalIncome.Sub(totalExpenses)
	r.AverageMonthlyIncome = averageMonthly(totalIncome, r)
	r.IncomeBreakdown = incomeBreakdown
	r.ExpenseBreakdown = expenseBreakdown
	r.MonthlyTrends = trends
	r.DataSources = sources
	r.TransactionCount = len(txs)
	r.AnomaliesDetected = anomalySummaries(txs)
	r.ConfidenceScore = confidenceScore(txs, len(sources))
	r.AIInsights = buildInsights(r)
	if r.Title == "" {
		r.Title = fmt.Sprintf("Income Report %s to %s",
			r.DateFrom.Format("2006-01-02"), r.DateTo.Format("2006-01-02"))
	}

	if err := c.reports.Update(ctx, r); err != nil {
		return fmt.Errorf("Compute: persisting aggregates: %w", err)
	}

	log.Info().
		Str("report_id", r.ID).
		Int("transactions", len(txs)).
		Int("confidence", r.ConfidenceScore).
		Msg("report aggregates computed")
	return nil
}

// averageMonthly divides total income over the period length in 30.44-day
// months, floored at 0.1 months so short ranges do not explode the average.
func averageMonthly(totalIncome decimal.Decimal, r *domain.IncomeReport) decimal.Decimal {
	days := int(r.DateTo.Sub(r.DateFrom).Hours()/24) + 1
	months := float64(days) / averageMonthLength
	if months < 0.1 {
		months = 0.1
	}
	return totalIncome.Div(decimal.NewFromFloat(months)).Round(2)
}

// confidenceScore is the heuristic 0-100 data-quality measure: full marks,
// minus penalties for small samples, single sources, uncategorized noise and
// the absence of any income.
func confidenceScore(txs []*domain.Transaction, sourceCount int) int {
	score := 100

	if len(txs) < 10 {
		score -= 30
	} else if len(txs) < 50 {
		score -= 15
	}

	if sourceCount < 2 {
		score -= 15
	}

	uncategorized := 0
	incomeCount := 0
	for _, tx := range txs {
		if tx.Uncategorized() {
			uncategorized++
		}
		if tx.IsIncome() {
			incomeCount++
		}
	}

	ratio := float64(uncategorized) / float64(len(txs))
	if ratio > 0.5 {
		score -= 20
	} else if ratio > 0.2 {
		score -= 10
	}

	if incomeCount == 0 {
		score -= 40
	}

	if score < 0 {
		score = 0
	}
	return score
}

// anomalySummaries flags transactions whose amount exceeds three times the
// mean of their direction and phrases the findings for the report.
func anomalySummaries(txs []*domain.Transaction) []string {
	directions := []struct {
		dir   domain.Direction
		label string
	}{
		{domain.DirectionIncome, "income"},
		{domain.DirectionExpense, "expense"},
	}

	var summaries []string
	for _, d := range directions {
		sum := decimal.Zero
		count := 0
		for _, tx := range txs {
			if tx.Direction == d.dir {
				sum = sum.Add(tx.Amount)
				count++
			}
		}
		if count == 0 {
			continue
		}

		threshold := sum.Div(decimal.NewFromInt(int64(count))).Mul(decimal.NewFromInt(3))
		flagged := 0
		for _, tx := range txs {
			if tx.Direction == d.dir && tx.Amount.GreaterThan(threshold) {
				flagged++
			}
		}
		if flagged > 0 {
			summaries = append(summaries, fmt.Sprintf("%d unusually large %s transactions detected", flagged, d.label))
		}
	}
	return summaries
}

// buildInsights derives locally computed observations about the report data:
// savings rate, source diversity and transaction frequency.
func buildInsights(r *domain.IncomeReport) string {
	var lines []string

	if r.TotalIncome.IsPositive() {
		rate := r.NetIncome.Div(r.TotalIncome).Mul(decimal.NewFromInt(100)).Round(1)
		switch {
		case rate.GreaterThanOrEqual(decimal.NewFromInt(20)):
			lines = append(lines, fmt.Sprintf("Healthy savings rate of %s%% of income.", rate))
		case rate.IsPositive():
			lines = append(lines, fmt.Sprintf("Positive savings rate of %s%% of income.", rate))
		default:
			lines = append(lines, "Expenses exceed income over this period.")
		}
	}

	switch n := len(r.DataSources); {
	case n >= 3:
		lines = append(lines, fmt.Sprintf("Income documented across %d platforms, indicating diversified earnings.", n))
	case n == 2:
		lines = append(lines, "Income documented across 2 platforms.")
	case n == 1:
		lines = append(lines, "All activity comes from a single platform.")
	}

	days := int(r.DateTo.Sub(r.DateFrom).Hours()/24) + 1
	if days > 0 && r.TransactionCount > 0 {
		perWeek := float64(r.TransactionCount) / float64(days) * 7
		lines = append(lines, fmt.Sprintf("Averaging %.1f transactions per week.", perWeek))
	}

	return strings.Join(lines, " ")
}
