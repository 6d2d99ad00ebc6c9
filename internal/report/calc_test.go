package report

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kitako/incomeproof/internal/domain"
	"github.com/kitako/incomeproof/internal/store/memory"
)

func insertTx(t *testing.T, s *memory.Store, txs ...*domain.Transaction) {
	t.Helper()
	if err := s.Transactions().Insert(context.Background(), txs); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
}

func baseReport(s *memory.Store, t *testing.T) *domain.IncomeReport {
	t.Helper()
	r := &domain.IncomeReport{
		ID:       "r1",
		UserID:   "user1",
		DateFrom: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		DateTo:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		Status:   domain.ReportStatusGenerating,
	}
	if err := s.Reports().Insert(context.Background(), r); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	return r
}

func TestComputeAggregation(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	insertTx(t, s,
		&domain.Transaction{ID: "t1", UserID: "user1", Date: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), Amount: decimal.RequireFromString("5000.00"), Direction: domain.DirectionIncome, Category: domain.CategoryFreelance, SourcePlatform: "gcash"},
		&domain.Transaction{ID: "t2", UserID: "user1", Date: time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC), Amount: decimal.RequireFromString("1500.00"), Direction: domain.DirectionExpense, Category: domain.CategoryFood, SourcePlatform: "gcash"},
	)
	r := baseReport(s, t)

	if err := NewCalculator(s.Transactions(), s.Reports()).Compute(ctx, r); err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if !r.TotalIncome.Equal(decimal.RequireFromString("5000.00")) {
		t.Errorf("total income = %s, want 5000.00", r.TotalIncome)
	}
	if !r.TotalExpenses.Equal(decimal.RequireFromString("1500.00")) {
		t.Errorf("total expenses = %s, want 1500.00", r.TotalExpenses)
	}
	if !r.NetIncome.Equal(decimal.RequireFromString("3500.00")) {
		t.Errorf("net income = %s, want 3500.00", r.NetIncome)
	}
	// Net income identity must hold exactly.
	if !r.NetIncome.Equal(r.TotalIncome.Sub(r.TotalExpenses)) {
		t.Error("net income identity violated")
	}
	if r.TransactionCount != 2 {
		t.Errorf("transaction count = %d, want 2", r.TransactionCount)
	}
	if !r.IncomeBreakdown["freelance"].Equal(decimal.RequireFromString("5000.00")) {
		t.Errorf("income breakdown = %v", r.IncomeBreakdown)
	}
	if len(r.DataSources) != 1 || r.DataSources[0] != "gcash" {
		t.Errorf("data sources = %v, want [gcash]", r.DataSources)
	}
	mt, ok := r.MonthlyTrends["2024-01"]
	if !ok {
		t.Fatal("missing 2024-01 trend bucket")
	}
	if !mt.Income.Equal(decimal.RequireFromString("5000.00")) || !mt.Expenses.Equal(decimal.RequireFromString("1500.00")) {
		t.Errorf("trend = %+v", mt)
	}
	if r.ConfidenceScore < 0 || r.ConfidenceScore > 100 {
		t.Errorf("confidence score %d out of range", r.ConfidenceScore)
	}
}

func TestComputeEmptyRangeFailsReport(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	r := baseReport(s, t)

	if err := NewCalculator(s.Transactions(), s.Reports()).Compute(ctx, r); err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}

	if r.Status != domain.ReportStatusFailed {
		t.Errorf("status = %q, want failed", r.Status)
	}
	if r.ConfidenceScore != 0 {
		t.Errorf("confidence = %d, want 0", r.ConfidenceScore)
	}
	if r.GenerationError == "" {
		t.Error("expected a descriptive generation error")
	}

	stored, err := s.Reports().Get(ctx, "user1", "r1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.Status != domain.ReportStatusFailed {
		t.Errorf("stored status = %q, want failed", stored.Status)
	}
}

func TestComputeUncategorizedBucket(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	insertTx(t, s,
		&domain.Transaction{ID: "t1", UserID: "user1", Date: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), Amount: decimal.NewFromInt(100), Direction: domain.DirectionIncome},
	)
	r := baseReport(s, t)

	if err := NewCalculator(s.Transactions(), s.Reports()).Compute(ctx, r); err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if _, ok := r.IncomeBreakdown[uncategorizedBucket]; !ok {
		t.Errorf("breakdown = %v, want %q bucket", r.IncomeBreakdown, uncategorizedBucket)
	}
}

func TestConfidenceScore(t *testing.T) {
	mk := func(n int, category domain.Category, dir domain.Direction) []*domain.Transaction {
		out := make([]*domain.Transaction, n)
		for i := range out {
			out[i] = &domain.Transaction{Category: category, Direction: dir, Amount: decimal.NewFromInt(100)}
		}
		return out
	}

	tests := []struct {
		name    string
		txs     []*domain.Transaction
		sources int
		want    int
	}{
		{
			// 100 - 30 (few txns) - 15 (one source) - 20 (all uncategorized) - 40 (no income) = -5 → 0
			name:    "worst case clamps at zero",
			txs:     mk(3, domain.CategoryOther, domain.DirectionExpense),
			sources: 1,
			want:    0,
		},
		{
			// 100 - 30 (few txns) - 15 (one source)
			name:    "small categorized sample",
			txs:     mk(5, domain.CategorySalary, domain.DirectionIncome),
			sources: 1,
			want:    55,
		},
		{
			// 100 - 15 (10..49 txns)
			name:    "medium sample two sources",
			txs:     mk(20, domain.CategorySalary, domain.DirectionIncome),
			sources: 2,
			want:    85,
		},
		{
			name:    "large clean sample",
			txs:     mk(60, domain.CategorySalary, domain.DirectionIncome),
			sources: 3,
			want:    100,
		},
		{
			// 100 - 15 - 10 (>20% uncategorized)
			name:    "partially uncategorized",
			txs:     append(mk(15, domain.CategorySalary, domain.DirectionIncome), mk(5, domain.CategoryOther, domain.DirectionIncome)...),
			sources: 2,
			want:    75,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := confidenceScore(tt.txs, tt.sources)
			if got != tt.want {
				t.Errorf("confidenceScore = %d, want %d", got, tt.want)
			}
			if got < 0 || got > 100 {
				t.Errorf("confidenceScore %d out of [0,100]", got)
			}
		})
	}
}

func TestAnomalySummariesBoundary(t *testing.T) {
	mk := func(amounts ...string) []*domain.Transaction {
		out := make([]*domain.Transaction, len(amounts))
		for i, a := range amounts {
			out[i] = &domain.Transaction{Direction: domain.DirectionIncome, Amount: decimal.RequireFromString(a)}
		}
		return out
	}

	// Five incomes summing to 1000: mean 200, threshold 600. The 600 outlier
	// sits exactly on the threshold and must not be flagged.
	atBoundary := mk("100", "100", "100", "100", "600")
	if got := anomalySummaries(atBoundary); len(got) != 0 {
		t.Errorf("amount equal to 3x mean was flagged: %v", got)
	}

	// Nudge the outlier past the threshold: sum 1001, mean 200.2,
	// threshold 600.6, and 601 exceeds it.
	overBoundary := mk("100", "100", "100", "100", "601")
	got := anomalySummaries(overBoundary)
	if len(got) != 1 {
		t.Fatalf("got %d summaries, want 1", len(got))
	}
	if got[0] != "1 unusually large income transactions detected" {
		t.Errorf("summary = %q", got[0])
	}
}

func TestAverageMonthly(t *testing.T) {
	r := &domain.IncomeReport{
		DateFrom: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		DateTo:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	}
	// 31 days / 30.44 ≈ 1.0184 months.
	got := averageMonthly(decimal.NewFromInt(10184), r)
	want := decimal.RequireFromString("10000.00")
	if !got.Equal(want) {
		t.Errorf("averageMonthly = %s, want %s", got, want)
	}

	// A single-day range floors at 0.1 months instead of dividing by ~0.03.
	r.DateTo = r.DateFrom
	got = averageMonthly(decimal.NewFromInt(100), r)
	if !got.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("single-day averageMonthly = %s, want 1000", got)
	}
}
