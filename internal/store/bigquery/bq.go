// Package bigquery implements the store interfaces over Google BigQuery.
// All mutations go through parameterized DML so that status transitions can
// be expressed as conditional updates.
package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

const (
	uploadsTable      = "uploads"
	transactionsTable = "transactions"
	jobsTable         = "ai_jobs"
	reportsTable      = "income_reports"
)

// Store holds a BigQuery client and the dataset the pipeline tables live in.
type Store struct {
	client  *bigquery.Client
	dataset string
}

// New creates a BigQuery-backed store. It assumes Application Default
// Credentials are configured.
func New(ctx context.Context, projectID, dataset string) (*Store, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("bigquery client: %w", err)
	}
	return &Store{client: client, dataset: dataset}, nil
}

// NewWithClient creates a store using the provided BigQuery client.
func NewWithClient(client *bigquery.Client, dataset string) *Store {
	return &Store{client: client, dataset: dataset}
}

// Close releases the underlying BigQuery client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Uploads returns the upload repository.
func (s *Store) Uploads() *UploadStore { return &UploadStore{s} }

// Transactions returns the transaction repository.
func (s *Store) Transactions() *TransactionStore { return &TransactionStore{s} }

// Jobs returns the job repository.
func (s *Store) Jobs() *JobStore { return &JobStore{s} }

// Reports returns the report repository.
func (s *Store) Reports() *ReportStore { return &ReportStore{s} }

func (s *Store) table(name string) string {
	return fmt.Sprintf("%s.%s", s.dataset, name)
}

// runDML runs a DML statement to completion and returns the number of
// affected rows.
func (s *Store) runDML(ctx context.Context, q *bigquery.Query) (int64, error) {
	job, err := q.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return 0, fmt.Errorf("job error: %w", err)
	}

	if qs, ok := status.Statistics.Details.(*bigquery.QueryStatistics); ok {
		return qs.NumDMLAffectedRows, nil
	}
	return 0, nil
}
