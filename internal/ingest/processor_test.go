package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kitako/incomeproof/internal/domain"
	"github.com/kitako/incomeproof/internal/filestore"
	"github.com/kitako/incomeproof/internal/store"
	"github.com/kitako/incomeproof/internal/store/memory"
)

func setupUpload(t *testing.T, content []byte, filename string) (*Processor, *memory.Store, *domain.Upload) {
	t.Helper()
	ctx := context.Background()

	s := memory.New()
	files := filestore.NewMemoryStore()

	uri, err := files.Save(ctx, "uploads/user1/"+filename, content)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	up := &domain.Upload{
		ID:               "up1",
		UserID:           "user1",
		StorageURI:       uri,
		OriginalFilename: filename,
		FileKind:         domain.FileKindBankStatement,
		Source:           domain.SourceGCash,
		Status:           domain.UploadStatusUploaded,
		CreatedAt:        time.Now(),
	}
	if err := s.Uploads().Insert(ctx, up); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	return NewProcessor(s.Uploads(), s.Transactions(), files), s, up
}

func TestProcessCSVUpload(t *testing.T) {
	ctx := context.Background()
	content := []byte("Date,Description,Amount,Type\n2024-01-15,Freelance Payment,5000.00,Income\n2024-01-16,Grocery Shopping,-1500.00,Expense\n")
	p, s, _ := setupUpload(t, content, "statement.csv")

	if err := p.Process(ctx, "user1", "up1"); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	up, err := s.Uploads().Get(ctx, "user1", "up1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if up.Status != domain.UploadStatusAwaitingReview {
		t.Errorf("status = %q, want awaiting_review", up.Status)
	}
	if up.SampleData {
		t.Error("real data was flagged as sample data")
	}

	txs, err := s.Transactions().List(ctx, "user1", store.TransactionFilter{UploadID: "up1"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("got %d transactions, want 2", len(txs))
	}

	if txs[0].Direction != domain.DirectionIncome || !txs[0].Amount.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("first transaction = %q %s, want income 5000", txs[0].Direction, txs[0].Amount)
	}
	if txs[1].Direction != domain.DirectionExpense || !txs[1].Amount.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("second transaction = %q %s, want expense 1500", txs[1].Direction, txs[1].Amount)
	}
	for _, tx := range txs {
		if tx.Amount.Sign() < 0 {
			t.Errorf("transaction %s has negative amount %s", tx.ID, tx.Amount)
		}
		if tx.Category != domain.CategoryOther {
			t.Errorf("transaction %s category = %q, want other", tx.ID, tx.Category)
		}
		if tx.Currency != domain.DefaultCurrency {
			t.Errorf("transaction %s currency = %q, want %q", tx.ID, tx.Currency, domain.DefaultCurrency)
		}
	}
}

func TestProcessIsIdempotent(t *testing.T) {
	ctx := context.Background()
	content := []byte("date,amount,description\n2024-01-15,100.00,salary\n")
	p, s, _ := setupUpload(t, content, "statement.csv")

	if err := p.Process(ctx, "user1", "up1"); err != nil {
		t.Fatalf("first Process failed: %v", err)
	}
	// Re-running against an already-advanced upload must not duplicate.
	if err := p.Process(ctx, "user1", "up1"); err != nil {
		t.Fatalf("second Process failed: %v", err)
	}

	txs, err := s.Transactions().List(ctx, "user1", store.TransactionFilter{UploadID: "up1"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(txs) != 1 {
		t.Errorf("got %d transactions after re-run, want 1", len(txs))
	}
}

func TestProcessSkipsIncompleteRows(t *testing.T) {
	ctx := context.Background()
	content := []byte("date,amount,description\n2024-01-15,100.00,salary\n2024-01-16,,missing amount\n,50.00,missing date\n")
	p, s, _ := setupUpload(t, content, "statement.csv")

	if err := p.Process(ctx, "user1", "up1"); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	up, _ := s.Uploads().Get(ctx, "user1", "up1")
	if up.SkippedRows != 2 {
		t.Errorf("skipped rows = %d, want 2", up.SkippedRows)
	}

	txs, _ := s.Transactions().List(ctx, "user1", store.TransactionFilter{UploadID: "up1"})
	if len(txs) != 1 {
		t.Errorf("got %d transactions, want 1", len(txs))
	}
}

func TestProcessFallsBackToSampleData(t *testing.T) {
	ctx := context.Background()
	// Valid CSV structure but no row survives normalization.
	content := []byte("name,note\nfirst,hello\nsecond,world\n")
	p, s, _ := setupUpload(t, content, "notes.csv")

	if err := p.Process(ctx, "user1", "up1"); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	up, _ := s.Uploads().Get(ctx, "user1", "up1")
	if !up.SampleData {
		t.Error("expected sample data flag on degraded extraction")
	}
	if up.Status != domain.UploadStatusAwaitingReview {
		t.Errorf("status = %q, want awaiting_review", up.Status)
	}

	txs, _ := s.Transactions().List(ctx, "user1", store.TransactionFilter{UploadID: "up1"})
	if len(txs) == 0 {
		t.Error("expected sample transactions")
	}
}

func TestProcessUnsupportedFormatFailsUpload(t *testing.T) {
	ctx := context.Background()
	p, s, _ := setupUpload(t, []byte("binary"), "archive.zip")

	if err := p.Process(ctx, "user1", "up1"); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	up, _ := s.Uploads().Get(ctx, "user1", "up1")
	if up.Status != domain.UploadStatusFailed {
		t.Errorf("status = %q, want failed", up.Status)
	}
	if up.Error == "" {
		t.Error("expected failure reason on upload")
	}
}

func TestReview(t *testing.T) {
	ctx := context.Background()
	content := []byte("date,amount,description\n2024-01-15,100.00,salary\n2024-01-16,50.00,bonus received\n")
	p, s, _ := setupUpload(t, content, "statement.csv")

	if err := p.Process(ctx, "user1", "up1"); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	txs, _ := s.Transactions().List(ctx, "user1", store.TransactionFilter{UploadID: "up1"})
	if len(txs) != 2 {
		t.Fatalf("got %d transactions, want 2", len(txs))
	}

	if err := p.Review(ctx, "user1", "up1", []string{txs[0].ID}); err != nil {
		t.Fatalf("Review failed: %v", err)
	}

	up, _ := s.Uploads().Get(ctx, "user1", "up1")
	if up.Status != domain.UploadStatusProcessed {
		t.Errorf("status = %q, want processed", up.Status)
	}
	if up.ProcessedAt == nil {
		t.Error("expected ProcessedAt to be set")
	}

	remaining, _ := s.Transactions().List(ctx, "user1", store.TransactionFilter{UploadID: "up1"})
	if len(remaining) != 1 {
		t.Errorf("got %d transactions after review, want 1", len(remaining))
	}

	// A second review pass must be rejected.
	if err := p.Review(ctx, "user1", "up1", nil); err != ErrNotAwaitingReview {
		t.Errorf("second Review err = %v, want ErrNotAwaitingReview", err)
	}
}

func TestDeleteUploadCascades(t *testing.T) {
	ctx := context.Background()
	content := []byte("date,amount,description\n2024-01-15,100.00,salary\n")
	p, s, _ := setupUpload(t, content, "statement.csv")

	if err := p.Process(ctx, "user1", "up1"); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if err := p.DeleteUpload(ctx, "user1", "up1"); err != nil {
		t.Fatalf("DeleteUpload failed: %v", err)
	}

	if _, err := s.Uploads().Get(ctx, "user1", "up1"); err == nil {
		t.Error("expected upload to be gone")
	}
	txs, _ := s.Transactions().List(ctx, "user1", store.TransactionFilter{})
	if len(txs) != 0 {
		t.Errorf("got %d transactions after delete, want 0", len(txs))
	}
}
