package report

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/kitako/incomeproof/internal/domain"
	"github.com/kitako/incomeproof/internal/store"
	"github.com/kitako/incomeproof/internal/store/memory"
)

// collidingReports forces the first n uniqueness probes to report a
// collision.
type collidingReports struct {
	store.Reports
	collisions int
	calls      int
}

func (c *collidingReports) VerificationCodeExists(ctx context.Context, code string) (bool, error) {
	c.calls++
	if c.calls <= c.collisions {
		return true, nil
	}
	return c.Reports.VerificationCodeExists(ctx, code)
}

func (c *collidingReports) AccessTokenExists(ctx context.Context, token string) (bool, error) {
	c.calls++
	if c.calls <= c.collisions {
		return true, nil
	}
	return c.Reports.AccessTokenExists(ctx, token)
}

var codePattern = regexp.MustCompile(`^[A-Z0-9]{12}$`)

func TestNewVerificationCode(t *testing.T) {
	ctx := context.Background()
	issuer := NewIssuer(memory.New().Reports(), "https://verify.example.com")

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := issuer.NewVerificationCode(ctx)
		if err != nil {
			t.Fatalf("NewVerificationCode failed: %v", err)
		}
		if !codePattern.MatchString(code) {
			t.Fatalf("code %q does not match the expected shape", code)
		}
		if seen[code] {
			t.Fatalf("duplicate code %q", code)
		}
		seen[code] = true
	}
}

func TestNewVerificationCodeRetriesOnCollision(t *testing.T) {
	ctx := context.Background()
	reports := &collidingReports{Reports: memory.New().Reports(), collisions: 3}
	issuer := NewIssuer(reports, "https://verify.example.com")

	code, err := issuer.NewVerificationCode(ctx)
	if err != nil {
		t.Fatalf("NewVerificationCode failed: %v", err)
	}
	if code == "" {
		t.Fatal("expected a code after collisions")
	}
	if reports.calls != 4 {
		t.Errorf("probe calls = %d, want 4", reports.calls)
	}
}

func TestNewVerificationCodeGivesUpEventually(t *testing.T) {
	ctx := context.Background()
	reports := &collidingReports{Reports: memory.New().Reports(), collisions: 1000}
	issuer := NewIssuer(reports, "https://verify.example.com")

	if _, err := issuer.NewVerificationCode(ctx); err == nil {
		t.Fatal("expected failure when every probe collides")
	}
}

func TestNewAccessToken(t *testing.T) {
	ctx := context.Background()
	issuer := NewIssuer(memory.New().Reports(), "https://verify.example.com")

	token, err := issuer.NewAccessToken(ctx)
	if err != nil {
		t.Fatalf("NewAccessToken failed: %v", err)
	}
	// 32 bytes in unpadded URL-safe base64.
	if len(token) != 43 {
		t.Errorf("token length = %d, want 43", len(token))
	}
}

func TestVerificationURL(t *testing.T) {
	issuer := NewIssuer(memory.New().Reports(), "https://verify.example.com/")
	got := issuer.VerificationURL("ABC123DEF456")
	want := "https://verify.example.com/verify/ABC123DEF456"
	if got != want {
		t.Errorf("VerificationURL = %q, want %q", got, want)
	}
}

func TestHashIsStable(t *testing.T) {
	a := Hash([]byte("report content"))
	b := Hash([]byte("report content"))
	if a != b {
		t.Error("hash of identical content differs")
	}
	if a == Hash([]byte("other content")) {
		t.Error("hash of different content collides")
	}
	if len(a) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(a))
	}
}

func TestSubmitSignatureRequiresCompletedReport(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	issuer := NewIssuer(s.Reports(), "https://verify.example.com")

	r := &domain.IncomeReport{
		ID:              "r1",
		UserID:          "user1",
		Status:          domain.ReportStatusGenerating,
		SignatureStatus: domain.SignatureNotSubmitted,
	}
	if err := s.Reports().Insert(ctx, r); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := issuer.SubmitSignature(ctx, "user1", "r1"); err != ErrReportNotCompleted {
		t.Fatalf("err = %v, want ErrReportNotCompleted", err)
	}

	// No state change on the failed submission.
	got, _ := s.Reports().Get(ctx, "user1", "r1")
	if got.SignatureStatus != domain.SignatureNotSubmitted || got.SignatureSubmittedAt != nil {
		t.Errorf("signature state changed on rejected submission: %+v", got)
	}
}

func TestSignatureLifecycle(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	issuer := NewIssuer(s.Reports(), "https://verify.example.com")

	r := &domain.IncomeReport{
		ID:              "r1",
		UserID:          "user1",
		Status:          domain.ReportStatusCompleted,
		ArtifactURI:     "mem://reports/user1/r1.txt",
		SignatureStatus: domain.SignatureNotSubmitted,
	}
	if err := s.Reports().Insert(ctx, r); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := issuer.SubmitSignature(ctx, "user1", "r1"); err != nil {
		t.Fatalf("SubmitSignature failed: %v", err)
	}
	got, _ := s.Reports().Get(ctx, "user1", "r1")
	if got.SignatureStatus != domain.SignaturePending || got.SignatureSubmittedAt == nil {
		t.Fatalf("after submit: %+v", got)
	}

	// Re-submitting is a no-op.
	if err := issuer.SubmitSignature(ctx, "user1", "r1"); err != nil {
		t.Fatalf("re-submit failed: %v", err)
	}

	if err := issuer.DecideSignature(ctx, "r1", true, "admin1", "verified against records"); err != nil {
		t.Fatalf("DecideSignature failed: %v", err)
	}
	got, _ = s.Reports().Get(ctx, "user1", "r1")
	if got.SignatureStatus != domain.SignatureApproved {
		t.Errorf("status = %q, want approved", got.SignatureStatus)
	}
	if got.SignatureReviewerID != "admin1" || got.SignatureDecidedAt == nil {
		t.Errorf("decision metadata missing: %+v", got)
	}

	// Decisions are terminal.
	if err := issuer.DecideSignature(ctx, "r1", false, "admin2", ""); err != ErrSignatureNotPending {
		t.Errorf("second decision err = %v, want ErrSignatureNotPending", err)
	}
	got, _ = s.Reports().Get(ctx, "user1", "r1")
	if got.SignatureStatus != domain.SignatureApproved {
		t.Error("terminal signature state was overwritten")
	}
}

func TestDecideSignatureRejection(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	issuer := NewIssuer(s.Reports(), "https://verify.example.com")

	now := time.Now()
	r := &domain.IncomeReport{
		ID:                   "r1",
		UserID:               "user1",
		Status:               domain.ReportStatusCompleted,
		ArtifactURI:          "mem://x",
		SignatureStatus:      domain.SignaturePending,
		SignatureSubmittedAt: &now,
	}
	if err := s.Reports().Insert(ctx, r); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := issuer.DecideSignature(ctx, "r1", false, "admin1", "document mismatch"); err != nil {
		t.Fatalf("DecideSignature failed: %v", err)
	}
	got, _ := s.Reports().Get(ctx, "user1", "r1")
	if got.SignatureStatus != domain.SignatureRejected {
		t.Errorf("status = %q, want rejected", got.SignatureStatus)
	}
	if got.AdminNotes != "document mismatch" {
		t.Errorf("notes = %q", got.AdminNotes)
	}
}
