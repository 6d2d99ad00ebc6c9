package jobs

import (
	"context"
	"time"
)

// TaskKind identifies the kind of background work a task carries.
type TaskKind string

const (
	// TaskProcessUpload extracts and normalizes a stored upload.
	TaskProcessUpload TaskKind = "process_upload"
	// TaskCategorizeTransactions runs the AI categorization job.
	TaskCategorizeTransactions TaskKind = "categorize_transactions"
	// TaskGenerateSummary runs the AI narrative summary job.
	TaskGenerateSummary TaskKind = "generate_summary"
	// TaskGenerateReport finalizes a computed report into its artifact.
	TaskGenerateReport TaskKind = "generate_report"
)

// TaskStatus is the queue-side lifecycle of a task. Durable state lives in
// the stores the handlers write to; this only tracks dispatch.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusRetrying  TaskStatus = "retrying"
)

// Task is the envelope placed on the queue. EntityID names the upload, AI
// job or report the task operates on; the handler resolves it through the
// stores so the envelope stays small.
type Task struct {
	ID       string   `json:"id"`
	Kind     TaskKind `json:"kind"`
	UserID   string   `json:"user_id"`
	EntityID string   `json:"entity_id"`

	Status      TaskStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// Publisher enqueues tasks. Implementations may be in-memory or backed by
// Cloud Tasks or Pub/Sub.
type Publisher interface {
	Publish(ctx context.Context, task *Task) error
	Close() error
}

// Consumer pulls tasks off the queue and hands them to a handler.
type Consumer interface {
	// Start begins consuming tasks. The handler is invoked concurrently,
	// one call per task.
	Start(ctx context.Context, handler Handler) error

	// Stop stops consuming and waits for in-flight tasks to finish.
	Stop(ctx context.Context) error
}

// Handler processes one task. A returned error marks the task failed and
// triggers a retry while attempts remain.
type Handler func(ctx context.Context, task *Task) error
