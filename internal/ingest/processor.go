package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kitako/incomeproof/internal/domain"
	"github.com/kitako/incomeproof/internal/filestore"
	"github.com/kitako/incomeproof/internal/logger"
	"github.com/kitako/incomeproof/internal/store"
)

// ErrNotAwaitingReview is returned by the review operations when the upload
// is not in the awaiting_review state.
var ErrNotAwaitingReview = errors.New("ingest: upload is not awaiting review")

// Processor runs the ingestion pipeline for one upload: fetch the raw bytes,
// extract and normalize rows, materialize transactions and advance the upload
// status.
type Processor struct {
	uploads store.Uploads
	txs     store.Transactions
	files   filestore.Store
}

// NewProcessor wires a Processor to its stores.
func NewProcessor(uploads store.Uploads, txs store.Transactions, files filestore.Store) *Processor {
	return &Processor{uploads: uploads, txs: txs, files: files}
}

// Process materializes an upload's transactions.
//
// The uploaded→processing compare-and-swap is the single-writer gate: when a
// second run races on the same upload the swap fails and Process returns nil
// without touching anything.
func (p *Processor) Process(ctx context.Context, userID, uploadID string) error {
	log := logger.FromContext(ctx)

	up, err := p.uploads.Get(ctx, userID, uploadID)
	if err != nil {
		return fmt.Errorf("Process: loading upload: %w", err)
	}

	swapped, err := p.uploads.CompareAndSwapStatus(ctx, uploadID, domain.UploadStatusUploaded, domain.UploadStatusProcessing)
	if err != nil {
		return fmt.Errorf("Process: claiming upload: %w", err)
	}
	if !swapped {
		log.Info().
			Str("upload_id", uploadID).
			Str("status", string(up.Status)).
			Msg("upload already claimed, skipping")
		return nil
	}

	content, err := p.files.Fetch(ctx, up.StorageURI)
	if err != nil {
		return p.fail(ctx, up, fmt.Sprintf("could not read uploaded file: %v", err))
	}

	rows, err := Extract(content, up.OriginalFilename)
	if err != nil {
		return p.fail(ctx, up, fmt.Sprintf("could not extract rows: %v", err))
	}

	var (
		fields  []*CanonicalFields
		skipped int
	)
	for _, row := range rows {
		f, ok := Normalize(row)
		if !ok {
			skipped++
			continue
		}
		if f.DateGuessed {
			log.Warn().
				Str("upload_id", uploadID).
				Str("description", f.Description).
				Msg("unparseable transaction date, using current time")
		}
		fields = append(fields, f)
	}

	if len(fields) == 0 {
		log.Warn().
			Str("upload_id", uploadID).
			Str("source", string(up.Source)).
			Msg("no transactions recognized, substituting sample data")
		fields = SampleRows(up.Source)
		up.SampleData = true
	}

	now := time.Now()
	txs := make([]*domain.Transaction, 0, len(fields))
	for _, f := range fields {
		txs = append(txs, &domain.Transaction{
			ID:             uuid.NewString(),
			UserID:         up.UserID,
			UploadID:       up.ID,
			Date:           f.Date,
			Amount:         f.Amount.Abs(),
			Currency:       domain.DefaultCurrency,
			Description:    f.Description,
			Reference:      f.Reference,
			Direction:      f.Direction,
			Category:       domain.CategoryOther,
			SourcePlatform: string(up.Source),
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}

	if err := p.txs.Insert(ctx, txs); err != nil {
		return p.fail(ctx, up, fmt.Sprintf("could not store transactions: %v", err))
	}

	up.SkippedRows = skipped
	up.DateRangeStart, up.DateRangeEnd = dateRange(txs)
	up.Status = domain.UploadStatusProcessing
	if err := p.uploads.Update(ctx, up); err != nil {
		return p.fail(ctx, up, fmt.Sprintf("could not record extraction results: %v", err))
	}

	if _, err := p.uploads.CompareAndSwapStatus(ctx, uploadID, domain.UploadStatusProcessing, domain.UploadStatusAwaitingReview); err != nil {
		return fmt.Errorf("Process: releasing upload: %w", err)
	}

	log.Info().
		Str("upload_id", uploadID).
		Int("transactions", len(txs)).
		Int("skipped_rows", skipped).
		Bool("sample_data", up.SampleData).
		Msg("upload processed")
	return nil
}

// fail records the failure reason on the upload. Processing errors surface on
// the entity, not past the pipeline boundary.
func (p *Processor) fail(ctx context.Context, up *domain.Upload, reason string) error {
	log := logger.FromContext(ctx)

	up.Status = domain.UploadStatusFailed
	up.Error = reason
	if err := p.uploads.Update(ctx, up); err != nil {
		log.Error().
			Err(err).
			Str("upload_id", up.ID).
			Msg("could not record upload failure")
	}

	log.Error().
		Str("upload_id", up.ID).
		Str("reason", reason).
		Msg("upload processing failed")
	return nil
}

// Review finalizes an upload's review pass: the rejected transactions are
// deleted, the remainder kept, and the upload moves awaiting_review→processed.
func (p *Processor) Review(ctx context.Context, userID, uploadID string, rejectIDs []string) error {
	up, err := p.uploads.Get(ctx, userID, uploadID)
	if err != nil {
		return fmt.Errorf("Review: loading upload: %w", err)
	}
	if up.Status != domain.UploadStatusAwaitingReview {
		return ErrNotAwaitingReview
	}

	for _, id := range rejectIDs {
		if err := p.txs.Delete(ctx, userID, id); err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("Review: deleting rejected transaction %s: %w", id, err)
		}
	}

	swapped, err := p.uploads.CompareAndSwapStatus(ctx, uploadID, domain.UploadStatusAwaitingReview, domain.UploadStatusProcessed)
	if err != nil {
		return fmt.Errorf("Review: finalizing upload: %w", err)
	}
	if !swapped {
		return ErrNotAwaitingReview
	}

	now := time.Now()
	up.Status = domain.UploadStatusProcessed
	up.ProcessedAt = &now
	if err := p.uploads.Update(ctx, up); err != nil {
		return fmt.Errorf("Review: recording review completion: %w", err)
	}
	return nil
}

// DeleteUpload removes an upload, its stored file and the transactions
// materialized from it.
func (p *Processor) DeleteUpload(ctx context.Context, userID, uploadID string) error {
	log := logger.FromContext(ctx)

	up, err := p.uploads.Get(ctx, userID, uploadID)
	if err != nil {
		return fmt.Errorf("DeleteUpload: loading upload: %w", err)
	}

	n, err := p.txs.DeleteByUpload(ctx, uploadID)
	if err != nil {
		return fmt.Errorf("DeleteUpload: deleting transactions: %w", err)
	}

	if up.StorageURI != "" {
		if err := p.files.Delete(ctx, up.StorageURI); err != nil {
			log.Warn().
				Err(err).
				Str("upload_id", uploadID).
				Msg("could not delete stored file")
		}
	}

	if err := p.uploads.Delete(ctx, userID, uploadID); err != nil {
		return fmt.Errorf("DeleteUpload: deleting upload: %w", err)
	}

	log.Info().
		Str("upload_id", uploadID).
		Int("transactions_deleted", n).
		Msg("upload deleted")
	return nil
}

func dateRange(txs []*domain.Transaction) (start, end *time.Time) {
	for _, tx := range txs {
		d := tx.Date
		if start == nil || d.Before(*start) {
			s := d
			start = &s
		}
		if end == nil || d.After(*end) {
			e := d
			end = &e
		}
	}
	return start, end
}
