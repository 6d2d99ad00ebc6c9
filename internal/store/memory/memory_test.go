package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kitako/incomeproof/internal/domain"
	"github.com/kitako/incomeproof/internal/store"
)

func TestUploadStatusCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	s := New()

	up := &domain.Upload{
		ID:        "up1",
		UserID:    "user1",
		Status:    domain.UploadStatusUploaded,
		CreatedAt: time.Now(),
	}
	if err := s.Uploads().Insert(ctx, up); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	swapped, err := s.Uploads().CompareAndSwapStatus(ctx, "up1", domain.UploadStatusUploaded, domain.UploadStatusProcessing)
	if err != nil {
		t.Fatalf("CompareAndSwapStatus failed: %v", err)
	}
	if !swapped {
		t.Fatal("expected first swap to succeed")
	}

	// A second claimant racing on the same upload must lose.
	swapped, err = s.Uploads().CompareAndSwapStatus(ctx, "up1", domain.UploadStatusUploaded, domain.UploadStatusProcessing)
	if err != nil {
		t.Fatalf("CompareAndSwapStatus failed: %v", err)
	}
	if swapped {
		t.Fatal("expected second swap to fail")
	}

	got, err := s.Uploads().Get(ctx, "user1", "up1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != domain.UploadStatusProcessing {
		t.Errorf("status = %q, want %q", got.Status, domain.UploadStatusProcessing)
	}
}

func TestUploadOwnershipScoping(t *testing.T) {
	ctx := context.Background()
	s := New()

	up := &domain.Upload{ID: "up1", UserID: "user1", Status: domain.UploadStatusUploaded}
	if err := s.Uploads().Insert(ctx, up); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if _, err := s.Uploads().Get(ctx, "user2", "up1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get with wrong owner: err = %v, want ErrNotFound", err)
	}
	if err := s.Uploads().Delete(ctx, "user2", "up1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Delete with wrong owner: err = %v, want ErrNotFound", err)
	}
}

func TestTransactionListFiltering(t *testing.T) {
	ctx := context.Background()
	s := New()

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	txs := []*domain.Transaction{
		{ID: "t1", UserID: "user1", UploadID: "up1", Date: base, Amount: decimal.NewFromInt(100), Direction: domain.DirectionIncome, Category: domain.CategorySalary, Description: "Salary payout"},
		{ID: "t2", UserID: "user1", UploadID: "up1", Date: base.AddDate(0, 0, 5), Amount: decimal.NewFromInt(50), Direction: domain.DirectionExpense, Category: domain.CategoryFood, Description: "Grocery run"},
		{ID: "t3", UserID: "user1", UploadID: "up2", Date: base.AddDate(0, 1, 0), Amount: decimal.NewFromInt(200), Direction: domain.DirectionIncome, Category: domain.CategoryFreelance, Description: "Client invoice"},
		{ID: "t4", UserID: "user2", UploadID: "up3", Date: base, Amount: decimal.NewFromInt(75), Direction: domain.DirectionIncome, Category: domain.CategorySalary},
	}
	if err := s.Transactions().Insert(ctx, txs); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	tests := []struct {
		name    string
		filter  store.TransactionFilter
		wantIDs []string
	}{
		{
			name:    "no filter returns all owned, date ordered",
			filter:  store.TransactionFilter{},
			wantIDs: []string{"t1", "t2", "t3"},
		},
		{
			name:    "by upload",
			filter:  store.TransactionFilter{UploadID: "up1"},
			wantIDs: []string{"t1", "t2"},
		},
		{
			name:    "by direction",
			filter:  store.TransactionFilter{Direction: domain.DirectionIncome},
			wantIDs: []string{"t1", "t3"},
		},
		{
			name:    "by id set",
			filter:  store.TransactionFilter{IDs: []string{"t2", "t3"}},
			wantIDs: []string{"t2", "t3"},
		},
		{
			name:    "by search",
			filter:  store.TransactionFilter{Search: "grocery"},
			wantIDs: []string{"t2"},
		},
		{
			name:    "by date window",
			filter:  store.TransactionFilter{DateFrom: timePtr(base.AddDate(0, 0, 1)), DateTo: timePtr(base.AddDate(0, 0, 10))},
			wantIDs: []string{"t2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Transactions().List(ctx, "user1", tt.filter)
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("got %d transactions, want %d", len(got), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if got[i].ID != id {
					t.Errorf("result[%d].ID = %q, want %q", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestDeleteByUploadCascade(t *testing.T) {
	ctx := context.Background()
	s := New()

	txs := []*domain.Transaction{
		{ID: "t1", UserID: "user1", UploadID: "up1"},
		{ID: "t2", UserID: "user1", UploadID: "up1"},
		{ID: "t3", UserID: "user1", UploadID: "up2"},
	}
	if err := s.Transactions().Insert(ctx, txs); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	n, err := s.Transactions().DeleteByUpload(ctx, "up1")
	if err != nil {
		t.Fatalf("DeleteByUpload failed: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted %d, want 2", n)
	}

	remaining, err := s.Transactions().List(ctx, "user1", store.TransactionFilter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != "t3" {
		t.Errorf("remaining = %v, want only t3", remaining)
	}
}

func TestFailStuckJobs(t *testing.T) {
	ctx := context.Background()
	s := New()

	old := time.Now().Add(-time.Hour)
	recent := time.Now().Add(-time.Minute)
	jobs := []*domain.CategorizationJob{
		{ID: "j1", UserID: "user1", Status: domain.JobStatusProcessing, StartedAt: &old},
		{ID: "j2", UserID: "user1", Status: domain.JobStatusProcessing, StartedAt: &recent},
		{ID: "j3", UserID: "user1", Status: domain.JobStatusCompleted, StartedAt: &old},
	}
	for _, j := range jobs {
		if err := s.Jobs().Insert(ctx, j); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	n, err := s.Jobs().FailStuck(ctx, time.Now().Add(-30*time.Minute))
	if err != nil {
		t.Fatalf("FailStuck failed: %v", err)
	}
	if n != 1 {
		t.Errorf("swept %d jobs, want 1", n)
	}

	j1, err := s.Jobs().Get(ctx, "user1", "j1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if j1.Status != domain.JobStatusFailed {
		t.Errorf("j1 status = %q, want failed", j1.Status)
	}
	j2, err := s.Jobs().Get(ctx, "user1", "j2")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if j2.Status != domain.JobStatusProcessing {
		t.Errorf("j2 status = %q, want processing", j2.Status)
	}
}

func TestReportCodeAndTokenProbes(t *testing.T) {
	ctx := context.Background()
	s := New()

	rep := &domain.IncomeReport{
		ID:               "r1",
		UserID:           "user1",
		VerificationCode: "ABC123XYZ789",
		AccessToken:      "token-1",
		Status:           domain.ReportStatusGenerating,
	}
	if err := s.Reports().Insert(ctx, rep); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	exists, err := s.Reports().VerificationCodeExists(ctx, "ABC123XYZ789")
	if err != nil || !exists {
		t.Errorf("VerificationCodeExists = %v, %v; want true, nil", exists, err)
	}
	exists, err = s.Reports().VerificationCodeExists(ctx, "OTHER0000000")
	if err != nil || exists {
		t.Errorf("VerificationCodeExists for unused code = %v, %v; want false, nil", exists, err)
	}

	got, err := s.Reports().GetByVerificationCode(ctx, "ABC123XYZ789")
	if err != nil {
		t.Fatalf("GetByVerificationCode failed: %v", err)
	}
	if got.ID != "r1" {
		t.Errorf("got report %q, want r1", got.ID)
	}

	if err := s.Reports().IncrementDownloadCount(ctx, "r1"); err != nil {
		t.Fatalf("IncrementDownloadCount failed: %v", err)
	}
	got, _ = s.Reports().GetAny(ctx, "r1")
	if got.DownloadCount != 1 {
		t.Errorf("download count = %d, want 1", got.DownloadCount)
	}
}

func TestReportCopyOnRead(t *testing.T) {
	ctx := context.Background()
	s := New()

	rep := &domain.IncomeReport{
		ID:              "r1",
		UserID:          "user1",
		IncomeBreakdown: map[string]decimal.Decimal{"salary": decimal.NewFromInt(100)},
		Status:          domain.ReportStatusGenerating,
	}
	if err := s.Reports().Insert(ctx, rep); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := s.Reports().Get(ctx, "user1", "r1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	got.IncomeBreakdown["salary"] = decimal.NewFromInt(999)

	again, _ := s.Reports().Get(ctx, "user1", "r1")
	if !again.IncomeBreakdown["salary"].Equal(decimal.NewFromInt(100)) {
		t.Error("mutating a returned report leaked into the store")
	}
}

func timePtr(t time.Time) *time.Time { return &t }
