package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/kitako/incomeproof/internal/domain"
	"github.com/kitako/incomeproof/internal/store"
)

const uploadColumns = `
	id, user_id, storage_uri, original_filename, file_size, file_kind,
	source, status, error, sample_data, skipped_rows, date_range_start,
	date_range_end, description, created_at, updated_at, processed_at`

// UploadStore persists uploads in BigQuery.
type UploadStore struct {
	s *Store
}

// Insert inserts a new upload row via DML so it is immediately updatable.
func (u *UploadStore) Insert(ctx context.Context, up *domain.Upload) error {
	row := uploadToRow(up)

	q := u.s.client.Query(fmt.Sprintf(`
		INSERT %s (
			id, user_id, storage_uri, original_filename, file_size, file_kind,
			source, status, error, sample_data, skipped_rows, date_range_start,
			date_range_end, description, created_at, updated_at, processed_at
		)
		VALUES (
			@id, @user_id, @storage_uri, @original_filename, @file_size, @file_kind,
			@source, @status, @error, @sample_data, @skipped_rows, @date_range_start,
			@date_range_end, @description, @created_at, @updated_at, @processed_at
		)
	`, u.s.table(uploadsTable)))
	q.Parameters = uploadParams(row)

	if _, err := u.s.runDML(ctx, q); err != nil {
		return fmt.Errorf("InsertUpload: %w", err)
	}
	return nil
}

// Get fetches one upload owned by the given user.
func (u *UploadStore) Get(ctx context.Context, userID, id string) (*domain.Upload, error) {
	q := u.s.client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE id = @id AND user_id = @user_id
		LIMIT 1
	`, uploadColumns, u.s.table(uploadsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "id", Value: id},
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetUpload: query read: %w", err)
	}

	var row uploadRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetUpload: reading row: %w", err)
	}

	return row.toDomain(), nil
}

// List returns all uploads of a user, newest first.
func (u *UploadStore) List(ctx context.Context, userID string) ([]*domain.Upload, error) {
	q := u.s.client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE user_id = @user_id
		ORDER BY created_at DESC
	`, uploadColumns, u.s.table(uploadsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListUploads: query read: %w", err)
	}

	var uploads []*domain.Upload
	for {
		var row uploadRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListUploads: iterating: %w", err)
		}
		uploads = append(uploads, row.toDomain())
	}

	return uploads, nil
}

// Update rewrites the mutable columns of an upload.
func (u *UploadStore) Update(ctx context.Context, up *domain.Upload) error {
	row := uploadToRow(up)

	q := u.s.client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    error = @error,
		    sample_data = @sample_data,
		    skipped_rows = @skipped_rows,
		    date_range_start = @date_range_start,
		    date_range_end = @date_range_end,
		    description = @description,
		    updated_at = @updated_at,
		    processed_at = @processed_at
		WHERE id = @id
	`, u.s.table(uploadsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: row.Status},
		{Name: "error", Value: row.Error},
		{Name: "sample_data", Value: row.SampleData},
		{Name: "skipped_rows", Value: row.SkippedRows},
		{Name: "date_range_start", Value: row.DateRangeStart},
		{Name: "date_range_end", Value: row.DateRangeEnd},
		{Name: "description", Value: row.Description},
		{Name: "updated_at", Value: time.Now()},
		{Name: "processed_at", Value: row.ProcessedAt},
		{Name: "id", Value: row.ID},
	}

	affected, err := u.s.runDML(ctx, q)
	if err != nil {
		return fmt.Errorf("UpdateUpload: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// CompareAndSwapStatus transitions the upload status only if it currently
// holds the expected value. The conditional WHERE clause makes the swap
// atomic on the storage side.
func (u *UploadStore) CompareAndSwapStatus(ctx context.Context, id string, from, to domain.UploadStatus) (bool, error) {
	q := u.s.client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @to, updated_at = @updated_at
		WHERE id = @id AND status = @from
	`, u.s.table(uploadsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "to", Value: string(to)},
		{Name: "updated_at", Value: time.Now()},
		{Name: "id", Value: id},
		{Name: "from", Value: string(from)},
	}

	affected, err := u.s.runDML(ctx, q)
	if err != nil {
		return false, fmt.Errorf("SwapUploadStatus: %w", err)
	}
	return affected > 0, nil
}

// Delete removes an upload owned by the given user.
func (u *UploadStore) Delete(ctx context.Context, userID, id string) error {
	q := u.s.client.Query(fmt.Sprintf(`
		DELETE FROM %s
		WHERE id = @id AND user_id = @user_id
	`, u.s.table(uploadsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "id", Value: id},
		{Name: "user_id", Value: userID},
	}

	affected, err := u.s.runDML(ctx, q)
	if err != nil {
		return fmt.Errorf("DeleteUpload: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func uploadParams(row *uploadRow) []bigquery.QueryParameter {
	return []bigquery.QueryParameter{
		{Name: "id", Value: row.ID},
		{Name: "user_id", Value: row.UserID},
		{Name: "storage_uri", Value: row.StorageURI},
		{Name: "original_filename", Value: row.OriginalFilename},
		{Name: "file_size", Value: row.FileSize},
		{Name: "file_kind", Value: row.FileKind},
		{Name: "source", Value: row.Source},
		{Name: "status", Value: row.Status},
		{Name: "error", Value: row.Error},
		{Name: "sample_data", Value: row.SampleData},
		{Name: "skipped_rows", Value: row.SkippedRows},
		{Name: "date_range_start", Value: row.DateRangeStart},
		{Name: "date_range_end", Value: row.DateRangeEnd},
		{Name: "description", Value: row.Description},
		{Name: "created_at", Value: row.CreatedAt},
		{Name: "updated_at", Value: row.UpdatedAt},
		{Name: "processed_at", Value: row.ProcessedAt},
	}
}

var _ store.Uploads = (*UploadStore)(nil)
