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

const reportColumns = `
	id, user_id, report_type, date_from, date_to, purpose,
	purpose_description, title, summary, total_income, total_expenses,
	net_income, average_monthly_income, income_breakdown, expense_breakdown,
	monthly_trends, data_sources, transaction_count, ai_insights,
	anomalies_detected, confidence_score, artifact_uri, file_size,
	document_hash, verification_code, access_token, is_public, expires_at,
	download_count, status, generation_error, signature_status,
	signature_submitted_at, signature_decided_at, signature_reviewer_id,
	admin_notes, created_at, updated_at, completed_at`

// ReportStore persists income reports in BigQuery.
type ReportStore struct {
	s *Store
}

// Insert inserts a new report row.
func (r *ReportStore) Insert(ctx context.Context, rep *domain.IncomeReport) error {
	row := reportToRow(rep)

	q := r.s.client.Query(fmt.Sprintf(`
		INSERT %s (
			id, user_id, report_type, date_from, date_to, purpose,
			purpose_description, title, summary, total_income, total_expenses,
			net_income, average_monthly_income, income_breakdown,
			expense_breakdown, monthly_trends, data_sources, transaction_count,
			ai_insights, anomalies_detected, confidence_score, artifact_uri,
			file_size, document_hash, verification_code, access_token,
			is_public, expires_at, download_count, status, generation_error,
			signature_status, signature_submitted_at, signature_decided_at,
			signature_reviewer_id, admin_notes, created_at, updated_at,
			completed_at
		)
		VALUES (
			@id, @user_id, @report_type, @date_from, @date_to, @purpose,
			@purpose_description, @title, @summary, @total_income,
			@total_expenses, @net_income, @average_monthly_income,
			@income_breakdown, @expense_breakdown, @monthly_trends,
			@data_sources, @transaction_count, @ai_insights,
			@anomalies_detected, @confidence_score, @artifact_uri, @file_size,
			@document_hash, @verification_code, @access_token, @is_public,
			@expires_at, @download_count, @status, @generation_error,
			@signature_status, @signature_submitted_at, @signature_decided_at,
			@signature_reviewer_id, @admin_notes, @created_at, @updated_at,
			@completed_at
		)
	`, r.s.table(reportsTable)))
	q.Parameters = reportParams(row)

	if _, err := r.s.runDML(ctx, q); err != nil {
		return fmt.Errorf("InsertReport: %w", err)
	}
	return nil
}

// Get fetches one report owned by the given user.
func (r *ReportStore) Get(ctx context.Context, userID, id string) (*domain.IncomeReport, error) {
	return r.getOne(ctx, "id = @id AND user_id = @user_id", []bigquery.QueryParameter{
		{Name: "id", Value: id},
		{Name: "user_id", Value: userID},
	})
}

// GetAny fetches a report regardless of owner. Callers authorize via the
// access token or verification code instead.
func (r *ReportStore) GetAny(ctx context.Context, id string) (*domain.IncomeReport, error) {
	return r.getOne(ctx, "id = @id", []bigquery.QueryParameter{
		{Name: "id", Value: id},
	})
}

// GetByVerificationCode fetches a report by its verification code.
func (r *ReportStore) GetByVerificationCode(ctx context.Context, code string) (*domain.IncomeReport, error) {
	return r.getOne(ctx, "verification_code = @code", []bigquery.QueryParameter{
		{Name: "code", Value: code},
	})
}

func (r *ReportStore) getOne(ctx context.Context, where string, params []bigquery.QueryParameter) (*domain.IncomeReport, error) {
	q := r.s.client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE %s
		LIMIT 1
	`, reportColumns, r.s.table(reportsTable), where))
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetReport: query read: %w", err)
	}

	var row reportRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetReport: reading row: %w", err)
	}

	return row.toDomain(), nil
}

// List returns all reports of a user, newest first.
func (r *ReportStore) List(ctx context.Context, userID string) ([]*domain.IncomeReport, error) {
	q := r.s.client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE user_id = @user_id
		ORDER BY created_at DESC
	`, reportColumns, r.s.table(reportsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListReports: query read: %w", err)
	}

	var reports []*domain.IncomeReport
	for {
		var row reportRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListReports: iterating: %w", err)
		}
		reports = append(reports, row.toDomain())
	}

	return reports, nil
}

// Update rewrites the mutable columns of a report. The verification code and
// access token are immutable once assigned and are deliberately excluded.
func (r *ReportStore) Update(ctx context.Context, rep *domain.IncomeReport) error {
	row := reportToRow(rep)

	q := r.s.client.Query(fmt.Sprintf(`
		UPDATE %s
		SET title = @title,
		    summary = @summary,
		    total_income = @total_income,
		    total_expenses = @total_expenses,
		    net_income = @net_income,
		    average_monthly_income = @average_monthly_income,
		    income_breakdown = @income_breakdown,
		    expense_breakdown = @expense_breakdown,
		    monthly_trends = @monthly_trends,
		    data_sources = @data_sources,
		    transaction_count = @transaction_count,
		    ai_insights = @ai_insights,
		    anomalies_detected = @anomalies_detected,
		    confidence_score = @confidence_score,
		    artifact_uri = @artifact_uri,
		    file_size = @file_size,
		    document_hash = @document_hash,
		    is_public = @is_public,
		    expires_at = @expires_at,
		    status = @status,
		    generation_error = @generation_error,
		    signature_status = @signature_status,
		    signature_submitted_at = @signature_submitted_at,
		    signature_decided_at = @signature_decided_at,
		    signature_reviewer_id = @signature_reviewer_id,
		    admin_notes = @admin_notes,
		    updated_at = @updated_at,
		    completed_at = @completed_at
		WHERE id = @id
	`, r.s.table(reportsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "title", Value: row.Title},
		{Name: "summary", Value: row.Summary},
		{Name: "total_income", Value: row.TotalIncome},
		{Name: "total_expenses", Value: row.TotalExpenses},
		{Name: "net_income", Value: row.NetIncome},
		{Name: "average_monthly_income", Value: row.AverageMonthlyIncome},
		{Name: "income_breakdown", Value: row.IncomeBreakdown},
		{Name: "expense_breakdown", Value: row.ExpenseBreakdown},
		{Name: "monthly_trends", Value: row.MonthlyTrends},
		{Name: "data_sources", Value: row.DataSources},
		{Name: "transaction_count", Value: row.TransactionCount},
		{Name: "ai_insights", Value: row.AIInsights},
		{Name: "anomalies_detected", Value: row.AnomaliesDetected},
		{Name: "confidence_score", Value: row.ConfidenceScore},
		{Name: "artifact_uri", Value: row.ArtifactURI},
		{Name: "file_size", Value: row.FileSize},
		{Name: "document_hash", Value: row.DocumentHash},
		{Name: "is_public", Value: row.IsPublic},
		{Name: "expires_at", Value: row.ExpiresAt},
		{Name: "status", Value: row.Status},
		{Name: "generation_error", Value: row.GenerationError},
		{Name: "signature_status", Value: row.SignatureStatus},
		{Name: "signature_submitted_at", Value: row.SignatureSubmittedAt},
		{Name: "signature_decided_at", Value: row.SignatureDecidedAt},
		{Name: "signature_reviewer_id", Value: row.SignatureReviewerID},
		{Name: "admin_notes", Value: row.AdminNotes},
		{Name: "updated_at", Value: time.Now()},
		{Name: "completed_at", Value: row.CompletedAt},
		{Name: "id", Value: row.ID},
	}

	affected, err := r.s.runDML(ctx, q)
	if err != nil {
		return fmt.Errorf("UpdateReport: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// CompareAndSwapStatus transitions the report status only if it currently
// holds the expected value.
func (r *ReportStore) CompareAndSwapStatus(ctx context.Context, id string, from, to domain.ReportStatus) (bool, error) {
	q := r.s.client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @to, updated_at = @updated_at
		WHERE id = @id AND status = @from
	`, r.s.table(reportsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "to", Value: string(to)},
		{Name: "updated_at", Value: time.Now()},
		{Name: "id", Value: id},
		{Name: "from", Value: string(from)},
	}

	affected, err := r.s.runDML(ctx, q)
	if err != nil {
		return false, fmt.Errorf("SwapReportStatus: %w", err)
	}
	return affected > 0, nil
}

// VerificationCodeExists reports whether any report carries the given code.
func (r *ReportStore) VerificationCodeExists(ctx context.Context, code string) (bool, error) {
	return r.exists(ctx, "verification_code = @v", code)
}

// AccessTokenExists reports whether any report carries the given token.
func (r *ReportStore) AccessTokenExists(ctx context.Context, token string) (bool, error) {
	return r.exists(ctx, "access_token = @v", token)
}

func (r *ReportStore) exists(ctx context.Context, where, value string) (bool, error) {
	q := r.s.client.Query(fmt.Sprintf(`
		SELECT COUNT(*) AS n
		FROM %s
		WHERE %s
	`, r.s.table(reportsTable), where))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "v", Value: value},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return false, fmt.Errorf("ReportExists: query read: %w", err)
	}

	var row struct {
		N int64 `bigquery:"n"`
	}
	if err := it.Next(&row); err != nil {
		return false, fmt.Errorf("ReportExists: reading row: %w", err)
	}

	return row.N > 0, nil
}

// IncrementDownloadCount bumps the report's download counter.
func (r *ReportStore) IncrementDownloadCount(ctx context.Context, id string) error {
	q := r.s.client.Query(fmt.Sprintf(`
		UPDATE %s
		SET download_count = download_count + 1
		WHERE id = @id
	`, r.s.table(reportsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "id", Value: id},
	}

	affected, err := r.s.runDML(ctx, q)
	if err != nil {
		return fmt.Errorf("IncrementDownloadCount: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Delete removes a report owned by the given user.
func (r *ReportStore) Delete(ctx context.Context, userID, id string) error {
	q := r.s.client.Query(fmt.Sprintf(`
		DELETE FROM %s
		WHERE id = @id AND user_id = @user_id
	`, r.s.table(reportsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "id", Value: id},
		{Name: "user_id", Value: userID},
	}

	affected, err := r.s.runDML(ctx, q)
	if err != nil {
		return fmt.Errorf("DeleteReport: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func reportParams(row *reportRow) []bigquery.QueryParameter {
	return []bigquery.QueryParameter{
		{Name: "id", Value: row.ID},
		{Name: "user_id", Value: row.UserID},
		{Name: "report_type", Value: row.ReportType},
		{Name: "date_from", Value: row.DateFrom},
		{Name: "date_to", Value: row.DateTo},
		{Name: "purpose", Value: row.Purpose},
		{Name: "purpose_description", Value: row.PurposeDescription},
		{Name: "title", Value: row.Title},
		{Name: "summary", Value: row.Summary},
		{Name: "total_income", Value: row.TotalIncome},
		{Name: "total_expenses", Value: row.TotalExpenses},
		{Name: "net_income", Value: row.NetIncome},
		{Name: "average_monthly_income", Value: row.AverageMonthlyIncome},
		{Name: "income_breakdown", Value: row.IncomeBreakdown},
		{Name: "expense_breakdown", Value: row.ExpenseBreakdown},
		{Name: "monthly_trends", Value: row.MonthlyTrends},
		{Name: "data_sources", Value: row.DataSources},
		{Name: "transaction_count", Value: row.TransactionCount},
		{Name: "ai_insights", Value: row.AIInsights},
		{Name: "anomalies_detected", Value: row.AnomaliesDetected},
		{Name: "confidence_score", Value: row.ConfidenceScore},
		{Name: "artifact_uri", Value: row.ArtifactURI},
		{Name: "file_size", Value: row.FileSize},
		{Name: "document_hash", Value: row.DocumentHash},
		{Name: "verification_code", Value: row.VerificationCode},
		{Name: "access_token", Value: row.AccessToken},
		{Name: "is_public", Value: row.IsPublic},
		{Name: "expires_at", Value: row.ExpiresAt},
		{Name: "download_count", Value: row.DownloadCount},
		{Name: "status", Value: row.Status},
		{Name: "generation_error", Value: row.GenerationError},
		{Name: "signature_status", Value: row.SignatureStatus},
		{Name: "signature_submitted_at", Value: row.SignatureSubmittedAt},
		{Name: "signature_decided_at", Value: row.SignatureDecidedAt},
		{Name: "signature_reviewer_id", Value: row.SignatureReviewerID},
		{Name: "admin_notes", Value: row.AdminNotes},
		{Name: "created_at", Value: row.CreatedAt},
		{Name: "updated_at", Value: row.UpdatedAt},
		{Name: "completed_at", Value: row.CompletedAt},
	}
}

var _ store.Reports = (*ReportStore)(nil)
