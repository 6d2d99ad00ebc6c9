package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kitako/incomeproof/internal/domain"
	"github.com/kitako/incomeproof/internal/logger"
	"github.com/kitako/incomeproof/internal/store"
)

// Gemini Flash list prices per million tokens, used for the per-job cost
// estimate recorded on completion.
var (
	inputCostPerMTokens  = decimal.RequireFromString("0.30")
	outputCostPerMTokens = decimal.RequireFromString("2.50")
	oneMillion           = decimal.NewFromInt(1_000_000)
)

// categorizeOutput is the JSON payload recorded on a completed
// categorization job.
type categorizeOutput struct {
	CategorizedCount int  `json:"categorized_count"`
	TotalCount       int  `json:"total_count"`
	MismatchedCount  int  `json:"mismatched_count,omitempty"`
	Unparseable      bool `json:"unparseable,omitempty"`
}

type summaryOutput struct {
	Summary string `json:"summary"`
}

// Orchestrator drives a CategorizationJob from acceptance to its terminal
// state: claim via CAS, run the model work, persist results, record usage.
type Orchestrator struct {
	jobs store.Jobs
	txs  store.Transactions

	categorizer *Categorizer
	summarizer  *Summarizer
	model       string
}

// NewOrchestrator wires an Orchestrator to its stores and model client.
func NewOrchestrator(jobs store.Jobs, txs store.Transactions, client Client) *Orchestrator {
	return &Orchestrator{
		jobs:        jobs,
		txs:         txs,
		categorizer: NewCategorizer(client),
		summarizer:  NewSummarizer(client),
		model:       client.Model(),
	}
}

// Run executes one job. The pending→processing compare-and-swap makes it safe
// to deliver the same job twice; the loser of the race returns immediately.
func (o *Orchestrator) Run(ctx context.Context, userID, jobID string) error {
	log := logger.FromContext(ctx)

	job, err := o.jobs.Get(ctx, userID, jobID)
	if err != nil {
		return fmt.Errorf("Run: loading job: %w", err)
	}

	swapped, err := o.jobs.CompareAndSwapStatus(ctx, jobID, domain.JobStatusPending, domain.JobStatusProcessing)
	if err != nil {
		return fmt.Errorf("Run: claiming job: %w", err)
	}
	if !swapped {
		log.Info().
			Str("job_id", jobID).
			Str("status", string(job.Status)).
			Msg("job already claimed, skipping")
		return nil
	}

	now := time.Now()
	job.Status = domain.JobStatusProcessing
	job.StartedAt = &now
	if err := o.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("Run: recording job start: %w", err)
	}

	txs, err := o.loadTransactions(ctx, job)
	if err != nil {
		return o.fail(ctx, job, fmt.Sprintf("could not load transactions: %v", err))
	}

	switch job.Kind {
	case domain.JobKindCategorizeTransactions:
		return o.runCategorize(ctx, job, txs)
	case domain.JobKindGenerateSummary:
		return o.runSummary(ctx, job, txs)
	default:
		return o.fail(ctx, job, fmt.Sprintf("unsupported job kind %q", job.Kind))
	}
}

func (o *Orchestrator) loadTransactions(ctx context.Context, job *domain.CategorizationJob) ([]*domain.Transaction, error) {
	f := store.TransactionFilter{}
	switch {
	case len(job.TransactionIDs) > 0:
		f.IDs = job.TransactionIDs
	case job.UploadID != "":
		f.UploadID = job.UploadID
	default:
		f.DateFrom = job.DateFrom
		f.DateTo = job.DateTo
	}
	return o.txs.List(ctx, job.UserID, f)
}

func (o *Orchestrator) runCategorize(ctx context.Context, job *domain.CategorizationJob, txs []*domain.Transaction) error {
	log := logger.FromContext(ctx)

	res, err := o.categorizer.CategorizeBatch(ctx, txs)
	if err != nil {
		// Service errors fail the job; it can be retried with a new job.
		return o.fail(ctx, job, err.Error())
	}

	updated := 0
	for _, tx := range txs {
		if !tx.AICategorized {
			continue
		}
		if err := o.txs.Update(ctx, tx); err != nil {
			log.Error().
				Err(err).
				Str("transaction_id", tx.ID).
				Msg("could not persist categorization")
			continue
		}
		updated++
	}

	out, _ := json.Marshal(categorizeOutput{
		CategorizedCount: updated,
		TotalCount:       res.Total,
		MismatchedCount:  res.Mismatched,
		Unparseable:      res.Unparseable,
	})
	return o.complete(ctx, job, string(out), res.InputTokens, res.OutputTokens, res.LatencyMS)
}

func (o *Orchestrator) runSummary(ctx context.Context, job *domain.CategorizationJob, txs []*domain.Transaction) error {
	from, to := time.Now().AddDate(0, -1, 0), time.Now()
	if job.DateFrom != nil {
		from = *job.DateFrom
	}
	if job.DateTo != nil {
		to = *job.DateTo
	}

	res, err := o.summarizer.GenerateSummary(ctx, txs, from, to)
	if err != nil {
		return o.fail(ctx, job, err.Error())
	}

	out, _ := json.Marshal(summaryOutput{Summary: res.Summary})
	return o.complete(ctx, job, string(out), res.InputTokens, res.OutputTokens, res.LatencyMS)
}

func (o *Orchestrator) complete(ctx context.Context, job *domain.CategorizationJob, output string, inTokens, outTokens, latencyMS int64) error {
	now := time.Now()
	job.Status = domain.JobStatusCompleted
	job.Output = output
	job.ModelName = o.model
	job.InputTokens = inTokens
	job.OutputTokens = outTokens
	job.CostUSD = estimateCost(inTokens, outTokens)
	job.LatencyMS = latencyMS
	job.CompletedAt = &now

	if err := o.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("complete: recording job result: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("job_id", job.ID).
		Str("kind", string(job.Kind)).
		Int64("input_tokens", inTokens).
		Int64("output_tokens", outTokens).
		Int64("latency_ms", latencyMS).
		Msg("job completed")
	return nil
}

// fail records the failure on the job. Like upload processing, job failures
// live on the entity and do not propagate past the pipeline boundary.
func (o *Orchestrator) fail(ctx context.Context, job *domain.CategorizationJob, reason string) error {
	now := time.Now()
	job.Status = domain.JobStatusFailed
	job.Error = reason
	job.CompletedAt = &now

	log := logger.FromContext(ctx)
	if err := o.jobs.Update(ctx, job); err != nil {
		log.Error().
			Err(err).
			Str("job_id", job.ID).
			Msg("could not record job failure")
	}

	log.Error().
		Str("job_id", job.ID).
		Str("reason", reason).
		Msg("job failed")
	return nil
}

func estimateCost(inTokens, outTokens int64) decimal.Decimal {
	in := decimal.NewFromInt(inTokens).Mul(inputCostPerMTokens).Div(oneMillion)
	out := decimal.NewFromInt(outTokens).Mul(outputCostPerMTokens).Div(oneMillion)
	return in.Add(out).Round(6)
}
