package worker

import (
	"context"
	"testing"
	"time"

	"github.com/kitako/incomeproof/internal/ai"
	"github.com/kitako/incomeproof/internal/domain"
	"github.com/kitako/incomeproof/internal/filestore"
	"github.com/kitako/incomeproof/internal/ingest"
	"github.com/kitako/incomeproof/internal/jobs"
	"github.com/kitako/incomeproof/internal/report"
	"github.com/kitako/incomeproof/internal/store/memory"
)

type stubClient struct{}

func (stubClient) Complete(ctx context.Context, system, user string, p ai.Params) (*ai.Completion, error) {
	return &ai.Completion{Text: "[]"}, nil
}

func (stubClient) Model() string { return "stub-model" }

func newDispatcher(t *testing.T) (*memory.Store, *filestore.MemoryStore, *Dispatcher) {
	t.Helper()
	s := memory.New()
	files := filestore.NewMemoryStore()

	processor := ingest.NewProcessor(s.Uploads(), s.Transactions(), files)
	orchestrator := ai.NewOrchestrator(s.Jobs(), s.Transactions(), stubClient{})
	issuer := report.NewIssuer(s.Reports(), "https://verify.example.com")
	finalizer := report.NewFinalizer(s.Reports(), files, report.TextArtifact{}, issuer)
	return s, files, NewDispatcher(processor, orchestrator, finalizer, s.Jobs())
}

func TestHandleProcessUpload(t *testing.T) {
	ctx := context.Background()
	s, files, d := newDispatcher(t)

	uri, err := files.Save(ctx, "uploads/user1/u1-statement.csv", []byte("Date,Description,Amount,Type\n2024-01-15,Client payment,5000.00,credit\n"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	up := &domain.Upload{
		ID:               "u1",
		UserID:           "user1",
		StorageURI:       uri,
		OriginalFilename: "statement.csv",
		Source:           domain.SourceGCash,
		Status:           domain.UploadStatusUploaded,
		CreatedAt:        time.Now(),
	}
	if err := s.Uploads().Insert(ctx, up); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	task := &jobs.Task{Kind: jobs.TaskProcessUpload, UserID: "user1", EntityID: "u1"}
	if err := d.Handle(ctx, task); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	got, _ := s.Uploads().Get(ctx, "user1", "u1")
	if got.Status != domain.UploadStatusAwaitingReview {
		t.Errorf("status = %q, want awaiting_review", got.Status)
	}
}

func TestHandleGenerateReport(t *testing.T) {
	ctx := context.Background()
	s, _, d := newDispatcher(t)

	rep := &domain.IncomeReport{
		ID:               "r1",
		UserID:           "user1",
		DateFrom:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		DateTo:           time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		VerificationCode: "ABC123DEF456",
		AccessToken:      "token-1",
		Status:           domain.ReportStatusGenerating,
		CreatedAt:        time.Now(),
	}
	if err := s.Reports().Insert(ctx, rep); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	task := &jobs.Task{Kind: jobs.TaskGenerateReport, UserID: "user1", EntityID: "r1"}
	if err := d.Handle(ctx, task); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	got, _ := s.Reports().Get(ctx, "user1", "r1")
	if got.Status != domain.ReportStatusCompleted || got.ArtifactURI == "" {
		t.Errorf("report = status %q uri %q", got.Status, got.ArtifactURI)
	}
}

func TestHandleUnknownKind(t *testing.T) {
	_, _, d := newDispatcher(t)

	task := &jobs.Task{Kind: jobs.TaskKind("bogus"), UserID: "user1", EntityID: "x"}
	if err := d.Handle(context.Background(), task); err == nil {
		t.Error("expected error for unknown task kind")
	}
}
