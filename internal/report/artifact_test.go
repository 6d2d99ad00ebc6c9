package report

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kitako/incomeproof/internal/domain"
	"github.com/kitako/incomeproof/internal/filestore"
	"github.com/kitako/incomeproof/internal/store/memory"
)

func completedFixture() *domain.IncomeReport {
	return &domain.IncomeReport{
		ID:                   "r1",
		UserID:               "user1",
		Title:                "Income Report 2024-01-01 to 2024-01-31",
		DateFrom:             time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		DateTo:               time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		Purpose:              domain.PurposeLoanApplication,
		TotalIncome:          decimal.RequireFromString("5000.00"),
		TotalExpenses:        decimal.RequireFromString("1500.00"),
		NetIncome:            decimal.RequireFromString("3500.00"),
		AverageMonthlyIncome: decimal.RequireFromString("4909.66"),
		IncomeBreakdown:      map[string]decimal.Decimal{"freelance": decimal.RequireFromString("5000.00")},
		ExpenseBreakdown:     map[string]decimal.Decimal{"food": decimal.RequireFromString("1500.00")},
		MonthlyTrends:        map[string]domain.MonthlyTotals{"2024-01": {Income: decimal.RequireFromString("5000.00"), Expenses: decimal.RequireFromString("1500.00")}},
		DataSources:          []string{"gcash"},
		TransactionCount:     2,
		ConfidenceScore:      55,
		VerificationCode:     "ABC123DEF456",
		AccessToken:          "token-1",
		Status:               domain.ReportStatusGenerating,
		CreatedAt:            time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestTextArtifactIsDeterministic(t *testing.T) {
	gen := TextArtifact{}
	r := completedFixture()

	a, err := gen.Render(r, "https://verify.example.com/verify/ABC123DEF456")
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	b, err := gen.Render(r, "https://verify.example.com/verify/ABC123DEF456")
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("rendering the same report twice produced different bytes")
	}

	text := string(a)
	for _, want := range []string{
		"PROOF OF INCOME REPORT",
		"Total income:           5000.00",
		"Net income:             3500.00",
		"freelance",
		"ABC123DEF456",
		"https://verify.example.com/verify/ABC123DEF456",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("artifact missing %q", want)
		}
	}
}

func TestFinalize(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	files := filestore.NewMemoryStore()
	issuer := NewIssuer(s.Reports(), "https://verify.example.com")

	r := completedFixture()
	if err := s.Reports().Insert(ctx, r); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	f := NewFinalizer(s.Reports(), files, TextArtifact{}, issuer)
	if err := f.Finalize(ctx, "user1", "r1"); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	got, err := s.Reports().Get(ctx, "user1", "r1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != domain.ReportStatusCompleted {
		t.Fatalf("status = %q, want completed", got.Status)
	}
	if got.ArtifactURI == "" || got.FileSize == 0 || got.DocumentHash == "" {
		t.Errorf("artifact metadata incomplete: %+v", got)
	}
	if got.CompletedAt == nil {
		t.Error("expected completion timestamp")
	}

	content, err := files.Fetch(ctx, got.ArtifactURI)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if int64(len(content)) != got.FileSize {
		t.Errorf("stored size %d != recorded %d", len(content), got.FileSize)
	}
	if Hash(content) != got.DocumentHash {
		t.Error("recorded hash does not match stored content")
	}
}

func TestFinalizeSkipsNonGeneratingReport(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	files := filestore.NewMemoryStore()
	issuer := NewIssuer(s.Reports(), "https://verify.example.com")

	r := completedFixture()
	r.Status = domain.ReportStatusFailed
	if err := s.Reports().Insert(ctx, r); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	f := NewFinalizer(s.Reports(), files, TextArtifact{}, issuer)
	if err := f.Finalize(ctx, "user1", "r1"); err != nil {
		t.Fatalf("Finalize returned error: %v", err)
	}

	got, _ := s.Reports().Get(ctx, "user1", "r1")
	if got.Status != domain.ReportStatusFailed || got.ArtifactURI != "" {
		t.Errorf("failed report was touched: %+v", got)
	}
}

func TestDownloadFlow(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	files := filestore.NewMemoryStore()
	issuer := NewIssuer(s.Reports(), "https://verify.example.com")

	r := completedFixture()
	if err := s.Reports().Insert(ctx, r); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := NewFinalizer(s.Reports(), files, TextArtifact{}, issuer).Finalize(ctx, "user1", "r1"); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	access := NewAccess(s.Reports(), files)

	if _, _, err := access.Download(ctx, "r1", "wrong-token"); err != ErrInvalidAccessToken {
		t.Errorf("wrong token err = %v, want ErrInvalidAccessToken", err)
	}

	content, rep, err := access.Download(ctx, "r1", "token-1")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if len(content) == 0 {
		t.Error("empty artifact content")
	}
	if rep.ID != "r1" {
		t.Errorf("report id = %q", rep.ID)
	}

	got, _ := s.Reports().GetAny(ctx, "r1")
	if got.DownloadCount != 1 {
		t.Errorf("download count = %d, want 1", got.DownloadCount)
	}
}

func TestDownloadExpiredReport(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	files := filestore.NewMemoryStore()

	past := time.Now().Add(-time.Hour)
	r := completedFixture()
	r.Status = domain.ReportStatusCompleted
	r.ArtifactURI = "mem://x"
	r.ExpiresAt = &past
	if err := s.Reports().Insert(ctx, r); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if _, _, err := NewAccess(s.Reports(), files).Download(ctx, "r1", "token-1"); err != ErrReportExpired {
		t.Fatalf("err = %v, want ErrReportExpired", err)
	}

	got, _ := s.Reports().GetAny(ctx, "r1")
	if got.Status != domain.ReportStatusExpired {
		t.Errorf("status = %q, want expired", got.Status)
	}
	if got.DownloadCount != 0 {
		t.Error("expired download must not count")
	}
}

func TestVerifyByCode(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	files := filestore.NewMemoryStore()
	access := NewAccess(s.Reports(), files)

	v, err := access.Verify(ctx, "UNKNOWN00000")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if v.Valid {
		t.Error("unknown code reported valid")
	}

	r := completedFixture()
	r.Status = domain.ReportStatusCompleted
	r.DocumentHash = "abc"
	if err := s.Reports().Insert(ctx, r); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	v, err = access.Verify(ctx, "ABC123DEF456")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !v.Valid {
		t.Errorf("completed report reported invalid: %+v", v)
	}
	if v.DocumentHash != "abc" {
		t.Errorf("hash = %q", v.DocumentHash)
	}
}
