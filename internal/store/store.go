// Package store defines the persistence contracts for the ingestion and
// reporting pipeline. Two implementations exist: BigQuery-backed (production)
// and in-memory (tests, single-instance development).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/kitako/incomeproof/internal/domain"
)

// ErrNotFound is returned when an entity does not exist or is not owned by
// the requesting user.
var ErrNotFound = errors.New("store: not found")

// TransactionFilter narrows transaction listings. Zero values mean "no
// constraint". IDs, when set, restricts the result to that id set.
type TransactionFilter struct {
	UploadID  string
	IDs       []string
	Direction domain.Direction
	Category  domain.Category
	Source    string
	Search    string
	DateFrom  *time.Time
	DateTo    *time.Time
}

// JobFilter narrows categorization-job listings.
type JobFilter struct {
	Kind   domain.JobKind
	Status domain.JobStatus
	Limit  int
}

// Uploads persists Upload entities.
//
// CompareAndSwapStatus is the pipeline's single-writer gate: it must be an atomic
// conditional update on the persisted status column, returning false when the
// entity was not in the expected state.
type Uploads interface {
	Insert(ctx context.Context, u *domain.Upload) error
	Get(ctx context.Context, userID, id string) (*domain.Upload, error)
	List(ctx context.Context, userID string) ([]*domain.Upload, error)
	Update(ctx context.Context, u *domain.Upload) error
	CompareAndSwapStatus(ctx context.Context, id string, from, to domain.UploadStatus) (bool, error)
	Delete(ctx context.Context, userID, id string) error
}

// Transactions persists Transaction entities.
type Transactions interface {
	Insert(ctx context.Context, txs []*domain.Transaction) error
	Get(ctx context.Context, userID, id string) (*domain.Transaction, error)
	List(ctx context.Context, userID string, f TransactionFilter) ([]*domain.Transaction, error)
	Update(ctx context.Context, tx *domain.Transaction) error
	Delete(ctx context.Context, userID, id string) error
	// DeleteByUpload removes all transactions materialized from an upload;
	// it backs the Upload deletion cascade.
	DeleteByUpload(ctx context.Context, uploadID string) (int, error)
}

// Jobs persists CategorizationJob entities.
type Jobs interface {
	Insert(ctx context.Context, j *domain.CategorizationJob) error
	Get(ctx context.Context, userID, id string) (*domain.CategorizationJob, error)
	List(ctx context.Context, userID string, f JobFilter) ([]*domain.CategorizationJob, error)
	Update(ctx context.Context, j *domain.CategorizationJob) error
	CompareAndSwapStatus(ctx context.Context, id string, from, to domain.JobStatus) (bool, error)
	// FailStuck marks jobs left in processing since before cutoff as failed
	// and returns how many were swept. A job is never left processing
	// indefinitely.
	FailStuck(ctx context.Context, cutoff time.Time) (int, error)
}

// Reports persists IncomeReport entities.
//
// VerificationCodeExists and AccessTokenExists back the issuer's collision
// retry loops; the storage engine additionally enforces uniqueness.
type Reports interface {
	Insert(ctx context.Context, r *domain.IncomeReport) error
	Get(ctx context.Context, userID, id string) (*domain.IncomeReport, error)
	// GetAny fetches a report regardless of owner; used by public download
	// and verification paths which authorize via token or code instead.
	GetAny(ctx context.Context, id string) (*domain.IncomeReport, error)
	GetByVerificationCode(ctx context.Context, code string) (*domain.IncomeReport, error)
	List(ctx context.Context, userID string) ([]*domain.IncomeReport, error)
	Update(ctx context.Context, r *domain.IncomeReport) error
	CompareAndSwapStatus(ctx context.Context, id string, from, to domain.ReportStatus) (bool, error)
	VerificationCodeExists(ctx context.Context, code string) (bool, error)
	AccessTokenExists(ctx context.Context, token string) (bool, error)
	IncrementDownloadCount(ctx context.Context, id string) error
	Delete(ctx context.Context, userID, id string) error
}
