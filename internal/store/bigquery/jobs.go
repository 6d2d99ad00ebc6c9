package bigquery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/kitako/incomeproof/internal/domain"
	"github.com/kitako/incomeproof/internal/store"
)

const jobColumns = `
	id, user_id, kind, transaction_ids, upload_id, date_from, date_to,
	status, error, output, model_name, input_tokens, output_tokens,
	cost_usd, latency_ms, created_at, started_at, completed_at`

// JobStore persists AI jobs in BigQuery.
type JobStore struct {
	s *Store
}

// Insert inserts a new job row.
func (j *JobStore) Insert(ctx context.Context, job *domain.CategorizationJob) error {
	row := jobToRow(job)

	q := j.s.client.Query(fmt.Sprintf(`
		INSERT %s (
			id, user_id, kind, transaction_ids, upload_id, date_from, date_to,
			status, error, output, model_name, input_tokens, output_tokens,
			cost_usd, latency_ms, created_at, started_at, completed_at
		)
		VALUES (
			@id, @user_id, @kind, @transaction_ids, @upload_id, @date_from, @date_to,
			@status, @error, @output, @model_name, @input_tokens, @output_tokens,
			@cost_usd, @latency_ms, @created_at, @started_at, @completed_at
		)
	`, j.s.table(jobsTable)))
	q.Parameters = jobParams(row)

	if _, err := j.s.runDML(ctx, q); err != nil {
		return fmt.Errorf("InsertJob: %w", err)
	}
	return nil
}

// Get fetches one job owned by the given user.
func (j *JobStore) Get(ctx context.Context, userID, id string) (*domain.CategorizationJob, error) {
	q := j.s.client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE id = @id AND user_id = @user_id
		LIMIT 1
	`, jobColumns, j.s.table(jobsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "id", Value: id},
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetJob: query read: %w", err)
	}

	var row jobRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetJob: reading row: %w", err)
	}

	return row.toDomain(), nil
}

// List returns the user's jobs matching the filter, newest first.
func (j *JobStore) List(ctx context.Context, userID string, f store.JobFilter) ([]*domain.CategorizationJob, error) {
	conds := []string{"user_id = @user_id"}
	params := []bigquery.QueryParameter{{Name: "user_id", Value: userID}}

	if f.Kind != "" {
		conds = append(conds, "kind = @kind")
		params = append(params, bigquery.QueryParameter{Name: "kind", Value: string(f.Kind)})
	}
	if f.Status != "" {
		conds = append(conds, "status = @status")
		params = append(params, bigquery.QueryParameter{Name: "status", Value: string(f.Status)})
	}

	limit := ""
	if f.Limit > 0 {
		limit = fmt.Sprintf("LIMIT %d", f.Limit)
	}

	q := j.s.client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE %s
		ORDER BY created_at DESC
		%s
	`, jobColumns, j.s.table(jobsTable), strings.Join(conds, " AND "), limit))
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListJobs: query read: %w", err)
	}

	var jobs []*domain.CategorizationJob
	for {
		var row jobRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListJobs: iterating: %w", err)
		}
		jobs = append(jobs, row.toDomain())
	}

	return jobs, nil
}

// Update rewrites the mutable columns of a job.
func (j *JobStore) Update(ctx context.Context, job *domain.CategorizationJob) error {
	row := jobToRow(job)

	q := j.s.client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    error = @error,
		    output = @output,
		    model_name = @model_name,
		    input_tokens = @input_tokens,
		    output_tokens = @output_tokens,
		    cost_usd = @cost_usd,
		    latency_ms = @latency_ms,
		    started_at = @started_at,
		    completed_at = @completed_at
		WHERE id = @id
	`, j.s.table(jobsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: row.Status},
		{Name: "error", Value: row.Error},
		{Name: "output", Value: row.Output},
		{Name: "model_name", Value: row.ModelName},
		{Name: "input_tokens", Value: row.InputTokens},
		{Name: "output_tokens", Value: row.OutputTokens},
		{Name: "cost_usd", Value: row.CostUSD},
		{Name: "latency_ms", Value: row.LatencyMS},
		{Name: "started_at", Value: row.StartedAt},
		{Name: "completed_at", Value: row.CompletedAt},
		{Name: "id", Value: row.ID},
	}

	affected, err := j.s.runDML(ctx, q)
	if err != nil {
		return fmt.Errorf("UpdateJob: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// CompareAndSwapStatus transitions the job status only if it currently holds
// the expected value.
func (j *JobStore) CompareAndSwapStatus(ctx context.Context, id string, from, to domain.JobStatus) (bool, error) {
	q := j.s.client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @to
		WHERE id = @id AND status = @from
	`, j.s.table(jobsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "to", Value: string(to)},
		{Name: "id", Value: id},
		{Name: "from", Value: string(from)},
	}

	affected, err := j.s.runDML(ctx, q)
	if err != nil {
		return false, fmt.Errorf("SwapJobStatus: %w", err)
	}
	return affected > 0, nil
}

// FailStuck fails every job left in processing since before the cutoff and
// returns how many were swept.
func (j *JobStore) FailStuck(ctx context.Context, cutoff time.Time) (int, error) {
	q := j.s.client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @failed,
		    error = @error,
		    completed_at = @completed_at
		WHERE status = @processing AND started_at < @cutoff
	`, j.s.table(jobsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "failed", Value: string(domain.JobStatusFailed)},
		{Name: "error", Value: "job timed out"},
		{Name: "completed_at", Value: time.Now()},
		{Name: "processing", Value: string(domain.JobStatusProcessing)},
		{Name: "cutoff", Value: cutoff},
	}

	affected, err := j.s.runDML(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("FailStuckJobs: %w", err)
	}
	return int(affected), nil
}

func jobParams(row *jobRow) []bigquery.QueryParameter {
	return []bigquery.QueryParameter{
		{Name: "id", Value: row.ID},
		{Name: "user_id", Value: row.UserID},
		{Name: "kind", Value: row.Kind},
		{Name: "transaction_ids", Value: row.TransactionIDs},
		{Name: "upload_id", Value: row.UploadID},
		{Name: "date_from", Value: row.DateFrom},
		{Name: "date_to", Value: row.DateTo},
		{Name: "status", Value: row.Status},
		{Name: "error", Value: row.Error},
		{Name: "output", Value: row.Output},
		{Name: "model_name", Value: row.ModelName},
		{Name: "input_tokens", Value: row.InputTokens},
		{Name: "output_tokens", Value: row.OutputTokens},
		{Name: "cost_usd", Value: row.CostUSD},
		{Name: "latency_ms", Value: row.LatencyMS},
		{Name: "created_at", Value: row.CreatedAt},
		{Name: "started_at", Value: row.StartedAt},
		{Name: "completed_at", Value: row.CompletedAt},
	}
}

var _ store.Jobs = (*JobStore)(nil)
