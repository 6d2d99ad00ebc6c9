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

const transactionColumns = `
	id, user_id, upload_id, date, amount, currency, description, reference,
	direction, category, subcategory, ai_categorized, ai_confidence,
	ai_rationale, manually_verified, manual_notes, source_platform,
	counterparty, is_anomaly, anomaly_reason, is_recurring, created_at,
	updated_at`

// TransactionStore persists transactions in BigQuery.
type TransactionStore struct {
	s *Store
}

// Insert writes a batch of transactions with a single multi-row DML insert so
// the rows are immediately updatable by the categorization pass.
func (t *TransactionStore) Insert(ctx context.Context, txs []*domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	var (
		tuples []string
		params []bigquery.QueryParameter
	)
	for i, tx := range txs {
		row := transactionToRow(tx)
		p := fmt.Sprintf("r%d_", i)
		tuples = append(tuples, fmt.Sprintf(`(
			@%[1]sid, @%[1]suser_id, @%[1]supload_id, @%[1]sdate, @%[1]samount,
			@%[1]scurrency, @%[1]sdescription, @%[1]sreference, @%[1]sdirection,
			@%[1]scategory, @%[1]ssubcategory, @%[1]sai_categorized,
			@%[1]sai_confidence, @%[1]sai_rationale, @%[1]smanually_verified,
			@%[1]smanual_notes, @%[1]ssource_platform, @%[1]scounterparty,
			@%[1]sis_anomaly, @%[1]sanomaly_reason, @%[1]sis_recurring,
			@%[1]screated_at, @%[1]supdated_at
		)`, p))
		params = append(params,
			bigquery.QueryParameter{Name: p + "id", Value: row.ID},
			bigquery.QueryParameter{Name: p + "user_id", Value: row.UserID},
			bigquery.QueryParameter{Name: p + "upload_id", Value: row.UploadID},
			bigquery.QueryParameter{Name: p + "date", Value: row.Date},
			bigquery.QueryParameter{Name: p + "amount", Value: row.Amount},
			bigquery.QueryParameter{Name: p + "currency", Value: row.Currency},
			bigquery.QueryParameter{Name: p + "description", Value: row.Description},
			bigquery.QueryParameter{Name: p + "reference", Value: row.Reference},
			bigquery.QueryParameter{Name: p + "direction", Value: row.Direction},
			bigquery.QueryParameter{Name: p + "category", Value: row.Category},
			bigquery.QueryParameter{Name: p + "subcategory", Value: row.Subcategory},
			bigquery.QueryParameter{Name: p + "ai_categorized", Value: row.AICategorized},
			bigquery.QueryParameter{Name: p + "ai_confidence", Value: row.AIConfidence},
			bigquery.QueryParameter{Name: p + "ai_rationale", Value: row.AIRationale},
			bigquery.QueryParameter{Name: p + "manually_verified", Value: row.ManuallyVerified},
			bigquery.QueryParameter{Name: p + "manual_notes", Value: row.ManualNotes},
			bigquery.QueryParameter{Name: p + "source_platform", Value: row.SourcePlatform},
			bigquery.QueryParameter{Name: p + "counterparty", Value: row.Counterparty},
			bigquery.QueryParameter{Name: p + "is_anomaly", Value: row.IsAnomaly},
			bigquery.QueryParameter{Name: p + "anomaly_reason", Value: row.AnomalyReason},
			bigquery.QueryParameter{Name: p + "is_recurring", Value: row.IsRecurring},
			bigquery.QueryParameter{Name: p + "created_at", Value: row.CreatedAt},
			bigquery.QueryParameter{Name: p + "updated_at", Value: row.UpdatedAt},
		)
	}

	q := t.s.client.Query(fmt.Sprintf(`
		INSERT %s (
			id, user_id, upload_id, date, amount, currency, description,
			reference, direction, category, subcategory, ai_categorized,
			ai_confidence, ai_rationale, manually_verified, manual_notes,
			source_platform, counterparty, is_anomaly, anomaly_reason,
			is_recurring, created_at, updated_at
		)
		VALUES %s
	`, t.s.table(transactionsTable), strings.Join(tuples, ",\n")))
	q.Parameters = params

	if _, err := t.s.runDML(ctx, q); err != nil {
		return fmt.Errorf("InsertTransactions: %w", err)
	}
	return nil
}

// Get fetches one transaction owned by the given user.
func (t *TransactionStore) Get(ctx context.Context, userID, id string) (*domain.Transaction, error) {
	q := t.s.client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE id = @id AND user_id = @user_id
		LIMIT 1
	`, transactionColumns, t.s.table(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "id", Value: id},
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetTransaction: query read: %w", err)
	}

	var row transactionRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetTransaction: reading row: %w", err)
	}

	return row.toDomain(), nil
}

// List returns the user's transactions matching the filter, ordered by date.
func (t *TransactionStore) List(ctx context.Context, userID string, f store.TransactionFilter) ([]*domain.Transaction, error) {
	conds := []string{"user_id = @user_id"}
	params := []bigquery.QueryParameter{{Name: "user_id", Value: userID}}

	if f.UploadID != "" {
		conds = append(conds, "upload_id = @upload_id")
		params = append(params, bigquery.QueryParameter{Name: "upload_id", Value: f.UploadID})
	}
	if len(f.IDs) > 0 {
		conds = append(conds, "id IN UNNEST(@ids)")
		params = append(params, bigquery.QueryParameter{Name: "ids", Value: f.IDs})
	}
	if f.Direction != "" {
		conds = append(conds, "direction = @direction")
		params = append(params, bigquery.QueryParameter{Name: "direction", Value: string(f.Direction)})
	}
	if f.Category != "" {
		conds = append(conds, "category = @category")
		params = append(params, bigquery.QueryParameter{Name: "category", Value: string(f.Category)})
	}
	if f.Source != "" {
		conds = append(conds, "source_platform = @source")
		params = append(params, bigquery.QueryParameter{Name: "source", Value: f.Source})
	}
	if f.Search != "" {
		conds = append(conds, `(
			LOWER(description) LIKE @search
			OR LOWER(counterparty) LIKE @search
			OR LOWER(reference) LIKE @search
		)`)
		params = append(params, bigquery.QueryParameter{Name: "search", Value: "%" + strings.ToLower(f.Search) + "%"})
	}
	if f.DateFrom != nil {
		conds = append(conds, "date >= @date_from")
		params = append(params, bigquery.QueryParameter{Name: "date_from", Value: *f.DateFrom})
	}
	if f.DateTo != nil {
		conds = append(conds, "date <= @date_to")
		params = append(params, bigquery.QueryParameter{Name: "date_to", Value: *f.DateTo})
	}

	q := t.s.client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE %s
		ORDER BY date, created_at
	`, transactionColumns, t.s.table(transactionsTable), strings.Join(conds, "\n\t\t  AND ")))
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: query read: %w", err)
	}

	var txs []*domain.Transaction
	for {
		var row transactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListTransactions: iterating: %w", err)
		}
		txs = append(txs, row.toDomain())
	}

	return txs, nil
}

// Update rewrites the mutable columns of a transaction.
func (t *TransactionStore) Update(ctx context.Context, tx *domain.Transaction) error {
	row := transactionToRow(tx)

	q := t.s.client.Query(fmt.Sprintf(`
		UPDATE %s
		SET date = @date,
		    amount = @amount,
		    currency = @currency,
		    description = @description,
		    reference = @reference,
		    direction = @direction,
		    category = @category,
		    subcategory = @subcategory,
		    ai_categorized = @ai_categorized,
		    ai_confidence = @ai_confidence,
		    ai_rationale = @ai_rationale,
		    manually_verified = @manually_verified,
		    manual_notes = @manual_notes,
		    source_platform = @source_platform,
		    counterparty = @counterparty,
		    is_anomaly = @is_anomaly,
		    anomaly_reason = @anomaly_reason,
		    is_recurring = @is_recurring,
		    updated_at = @updated_at
		WHERE id = @id
	`, t.s.table(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "date", Value: row.Date},
		{Name: "amount", Value: row.Amount},
		{Name: "currency", Value: row.Currency},
		{Name: "description", Value: row.Description},
		{Name: "reference", Value: row.Reference},
		{Name: "direction", Value: row.Direction},
		{Name: "category", Value: row.Category},
		{Name: "subcategory", Value: row.Subcategory},
		{Name: "ai_categorized", Value: row.AICategorized},
		{Name: "ai_confidence", Value: row.AIConfidence},
		{Name: "ai_rationale", Value: row.AIRationale},
		{Name: "manually_verified", Value: row.ManuallyVerified},
		{Name: "manual_notes", Value: row.ManualNotes},
		{Name: "source_platform", Value: row.SourcePlatform},
		{Name: "counterparty", Value: row.Counterparty},
		{Name: "is_anomaly", Value: row.IsAnomaly},
		{Name: "anomaly_reason", Value: row.AnomalyReason},
		{Name: "is_recurring", Value: row.IsRecurring},
		{Name: "updated_at", Value: time.Now()},
		{Name: "id", Value: row.ID},
	}

	affected, err := t.s.runDML(ctx, q)
	if err != nil {
		return fmt.Errorf("UpdateTransaction: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Delete removes one transaction owned by the given user.
func (t *TransactionStore) Delete(ctx context.Context, userID, id string) error {
	q := t.s.client.Query(fmt.Sprintf(`
		DELETE FROM %s
		WHERE id = @id AND user_id = @user_id
	`, t.s.table(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "id", Value: id},
		{Name: "user_id", Value: userID},
	}

	affected, err := t.s.runDML(ctx, q)
	if err != nil {
		return fmt.Errorf("DeleteTransaction: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteByUpload removes every transaction materialized from an upload and
// returns how many were deleted.
func (t *TransactionStore) DeleteByUpload(ctx context.Context, uploadID string) (int, error) {
	q := t.s.client.Query(fmt.Sprintf(`
		DELETE FROM %s
		WHERE upload_id = @upload_id
	`, t.s.table(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "upload_id", Value: uploadID},
	}

	affected, err := t.s.runDML(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("DeleteTransactionsByUpload: %w", err)
	}
	return int(affected), nil
}

var _ store.Transactions = (*TransactionStore)(nil)
