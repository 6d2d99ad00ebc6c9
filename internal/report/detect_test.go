package report

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kitako/incomeproof/internal/domain"
	"github.com/kitako/incomeproof/internal/store/memory"
)

func detectorFixture(t *testing.T) (*memory.Store, *Detector) {
	t.Helper()
	s := memory.New()
	// Four food expenses around 100 establish the category average; the
	// fifth is far enough out to trip the 200% deviation threshold.
	// Average of {100,100,100,100,700} is 220; 700 deviates ~218%.
	insertTx(t, s,
		&domain.Transaction{ID: "t1", UserID: "user1", Date: day(1), Amount: decimal.NewFromInt(100), Direction: domain.DirectionExpense, Category: domain.CategoryFood},
		&domain.Transaction{ID: "t2", UserID: "user1", Date: day(2), Amount: decimal.NewFromInt(100), Direction: domain.DirectionExpense, Category: domain.CategoryFood},
		&domain.Transaction{ID: "t3", UserID: "user1", Date: day(3), Amount: decimal.NewFromInt(100), Direction: domain.DirectionExpense, Category: domain.CategoryFood},
		&domain.Transaction{ID: "t4", UserID: "user1", Date: day(4), Amount: decimal.NewFromInt(100), Direction: domain.DirectionExpense, Category: domain.CategoryFood},
		&domain.Transaction{ID: "t5", UserID: "user1", Date: day(5), Amount: decimal.NewFromInt(700), Direction: domain.DirectionExpense, Category: domain.CategoryFood},
	)
	return s, NewDetector(s.Transactions())
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestDetectAnomalies(t *testing.T) {
	ctx := context.Background()
	s, det := detectorFixture(t)

	flagged, err := det.DetectAnomalies(ctx, "user1", nil)
	if err != nil {
		t.Fatalf("DetectAnomalies failed: %v", err)
	}
	if len(flagged) != 1 {
		t.Fatalf("flagged %d transactions, want 1", len(flagged))
	}
	if flagged[0].ID != "t5" {
		t.Errorf("flagged %q, want t5", flagged[0].ID)
	}
	if flagged[0].AnomalyReason != "Amount deviation: 218.2% from category average" {
		t.Errorf("reason = %q", flagged[0].AnomalyReason)
	}

	// The flag must be persisted, not just returned.
	stored, err := s.Transactions().Get(ctx, "user1", "t5")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !stored.IsAnomaly || stored.AnomalyReason == "" {
		t.Errorf("flag not persisted: %+v", stored)
	}

	// In-range transactions stay untouched.
	stored, _ = s.Transactions().Get(ctx, "user1", "t1")
	if stored.IsAnomaly {
		t.Error("t1 flagged despite matching the category average")
	}
}

func TestDetectAnomaliesCandidateSubset(t *testing.T) {
	ctx := context.Background()
	_, det := detectorFixture(t)

	// Restricting candidates to the in-range rows excludes the outlier from
	// flagging even though it still shapes the category average.
	flagged, err := det.DetectAnomalies(ctx, "user1", []string{"t1", "t2"})
	if err != nil {
		t.Fatalf("DetectAnomalies failed: %v", err)
	}
	if len(flagged) != 0 {
		t.Errorf("flagged %d transactions, want 0", len(flagged))
	}
}

func TestDetectAnomaliesSmallDeviationNotFlagged(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	// 300 against an average of 150 deviates 100%, under the threshold.
	insertTx(t, s,
		&domain.Transaction{ID: "t1", UserID: "user1", Date: day(1), Amount: decimal.NewFromInt(100), Direction: domain.DirectionIncome, Category: domain.CategorySalary},
		&domain.Transaction{ID: "t2", UserID: "user1", Date: day(2), Amount: decimal.NewFromInt(50), Direction: domain.DirectionIncome, Category: domain.CategorySalary},
		&domain.Transaction{ID: "t3", UserID: "user1", Date: day(3), Amount: decimal.NewFromInt(300), Direction: domain.DirectionIncome, Category: domain.CategorySalary},
	)

	flagged, err := NewDetector(s.Transactions()).DetectAnomalies(ctx, "user1", nil)
	if err != nil {
		t.Fatalf("DetectAnomalies failed: %v", err)
	}
	if len(flagged) != 0 {
		t.Errorf("flagged %d transactions, want 0", len(flagged))
	}
}
