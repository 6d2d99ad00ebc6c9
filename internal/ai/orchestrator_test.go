package ai

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kitako/incomeproof/internal/domain"
	"github.com/kitako/incomeproof/internal/store/memory"
)

func setupJob(t *testing.T, client Client) (*Orchestrator, *memory.Store, *domain.CategorizationJob) {
	t.Helper()
	ctx := context.Background()

	s := memory.New()
	txs := []*domain.Transaction{
		{ID: "t1", UserID: "user1", UploadID: "up1", Date: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), Amount: decimal.NewFromInt(5000), Direction: domain.DirectionIncome, Category: domain.CategoryOther, Description: "Freelance payment"},
		{ID: "t2", UserID: "user1", UploadID: "up1", Date: time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC), Amount: decimal.NewFromInt(1500), Direction: domain.DirectionExpense, Category: domain.CategoryOther, Description: "Grocery shopping"},
	}
	if err := s.Transactions().Insert(ctx, txs); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	job := &domain.CategorizationJob{
		ID:             "j1",
		UserID:         "user1",
		Kind:           domain.JobKindCategorizeTransactions,
		TransactionIDs: []string{"t1", "t2"},
		Status:         domain.JobStatusPending,
		CreatedAt:      time.Now(),
	}
	if err := s.Jobs().Insert(ctx, job); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	return NewOrchestrator(s.Jobs(), s.Transactions(), client), s, job
}

func TestOrchestratorCompletesCategorizeJob(t *testing.T) {
	ctx := context.Background()
	client := &mockClient{
		completeFunc: func(ctx context.Context, system, user string, p Params) (*Completion, error) {
			return &Completion{
				Text:         `[{"id":"t1","direction":"income","category":"freelance","confidence":"high","rationale":"x"},{"id":"t2","direction":"expense","category":"food","confidence":"medium","rationale":"y"}]`,
				InputTokens:  100,
				OutputTokens: 50,
			}, nil
		},
	}
	o, s, _ := setupJob(t, client)

	if err := o.Run(ctx, "user1", "j1"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	job, err := s.Jobs().Get(ctx, "user1", "j1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if job.Status != domain.JobStatusCompleted {
		t.Fatalf("status = %q, want completed", job.Status)
	}
	if job.StartedAt == nil || job.CompletedAt == nil {
		t.Error("expected start and completion timestamps")
	}
	if job.ModelName != "test-model" {
		t.Errorf("model = %q, want test-model", job.ModelName)
	}
	if job.InputTokens != 100 || job.OutputTokens != 50 {
		t.Errorf("usage = %d/%d, want 100/50", job.InputTokens, job.OutputTokens)
	}
	if job.CostUSD.IsZero() {
		t.Error("expected a cost estimate")
	}

	var out categorizeOutput
	if err := json.Unmarshal([]byte(job.Output), &out); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if out.CategorizedCount != 2 || out.TotalCount != 2 {
		t.Errorf("output = %+v, want 2/2", out)
	}

	// Verdicts must be persisted.
	tx, err := s.Transactions().Get(ctx, "user1", "t1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if tx.Category != domain.CategoryFreelance || !tx.AICategorized {
		t.Errorf("t1 = %q (ai=%v), want persisted freelance", tx.Category, tx.AICategorized)
	}
}

func TestOrchestratorServiceErrorFailsJob(t *testing.T) {
	ctx := context.Background()
	client := &mockClient{
		completeFunc: func(ctx context.Context, system, user string, p Params) (*Completion, error) {
			return nil, errors.New("model unavailable")
		},
	}
	o, s, _ := setupJob(t, client)

	if err := o.Run(ctx, "user1", "j1"); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	job, _ := s.Jobs().Get(ctx, "user1", "j1")
	if job.Status != domain.JobStatusFailed {
		t.Errorf("status = %q, want failed", job.Status)
	}
	if job.Error == "" {
		t.Error("expected failure reason on job")
	}
}

func TestOrchestratorUnparseableCompletesWithZeroUpdates(t *testing.T) {
	ctx := context.Background()
	client := &mockClient{
		completeFunc: func(ctx context.Context, system, user string, p Params) (*Completion, error) {
			return &Completion{Text: "not json"}, nil
		},
	}
	o, s, _ := setupJob(t, client)

	if err := o.Run(ctx, "user1", "j1"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	job, _ := s.Jobs().Get(ctx, "user1", "j1")
	if job.Status != domain.JobStatusCompleted {
		t.Fatalf("status = %q, want completed", job.Status)
	}
	var out categorizeOutput
	if err := json.Unmarshal([]byte(job.Output), &out); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if out.CategorizedCount != 0 || !out.Unparseable {
		t.Errorf("output = %+v, want 0 updates and unparseable", out)
	}
}

func TestOrchestratorRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	calls := 0
	client := &mockClient{
		completeFunc: func(ctx context.Context, system, user string, p Params) (*Completion, error) {
			calls++
			return &Completion{Text: `[]`}, nil
		},
	}
	o, _, _ := setupJob(t, client)

	if err := o.Run(ctx, "user1", "j1"); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	if err := o.Run(ctx, "user1", "j1"); err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("model called %d times, want 1", calls)
	}
}

func TestOrchestratorSummaryJob(t *testing.T) {
	ctx := context.Background()
	client := &mockClient{
		completeFunc: func(ctx context.Context, system, user string, p Params) (*Completion, error) {
			return &Completion{Text: "Stable monthly income from freelance work."}, nil
		},
	}
	o, s, job := setupJob(t, client)

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	job.Kind = domain.JobKindGenerateSummary
	job.DateFrom = &from
	job.DateTo = &to
	if err := s.Jobs().Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if err := o.Run(ctx, "user1", "j1"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	got, _ := s.Jobs().Get(ctx, "user1", "j1")
	if got.Status != domain.JobStatusCompleted {
		t.Fatalf("status = %q, want completed", got.Status)
	}
	var out summaryOutput
	if err := json.Unmarshal([]byte(got.Output), &out); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if out.Summary == "" {
		t.Error("expected summary text on job output")
	}
}

func TestEstimateCost(t *testing.T) {
	got := estimateCost(1_000_000, 1_000_000)
	want := decimal.RequireFromString("2.80")
	if !got.Equal(want) {
		t.Errorf("estimateCost = %s, want %s", got, want)
	}
	if !estimateCost(0, 0).IsZero() {
		t.Error("zero usage should cost zero")
	}
}
