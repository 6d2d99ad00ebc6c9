package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// JobKind is the type of asynchronous AI work tracked by a CategorizationJob.
type JobKind string

const (
	JobKindCategorizeTransactions JobKind = "categorize_transactions"
	JobKindGenerateSummary        JobKind = "generate_summary"
	JobKindDetectAnomalies        JobKind = "detect_anomalies"
)

// JobStatus is the lifecycle state of a CategorizationJob.
//
// The status is monotonic: pending → processing → completed | failed, with
// cancelled only reachable from pending. Terminal states are never revisited.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Terminal reports whether s is a terminal job state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// CategorizationJob tracks one asynchronous categorization or summarization
// request from acceptance to its terminal state.
type CategorizationJob struct {
	ID     string
	UserID string

	Kind JobKind

	// Input references: either an explicit transaction id set or the upload
	// whose transactions are the batch. Summary jobs carry a date range.
	TransactionIDs []string
	UploadID       string
	DateFrom       *time.Time
	DateTo         *time.Time

	Status JobStatus
	Error  string

	// Output is the job result payload, JSON-encoded.
	Output string

	// Usage metrics recorded at completion.
	ModelName    string
	InputTokens  int64
	OutputTokens int64
	CostUSD      decimal.Decimal
	LatencyMS    int64

	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}
