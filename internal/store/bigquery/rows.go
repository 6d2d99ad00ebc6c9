package bigquery

import (
	"encoding/json"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/kitako/incomeproof/internal/domain"
)

// uploadRow mirrors the uploads table schema.
type uploadRow struct {
	ID               string                 `bigquery:"id"`                // REQUIRED
	UserID           string                 `bigquery:"user_id"`           // REQUIRED
	StorageURI       string                 `bigquery:"storage_uri"`       // REQUIRED
	OriginalFilename string                 `bigquery:"original_filename"` // NULLABLE
	FileSize         int64                  `bigquery:"file_size"`         // NULLABLE
	FileKind         string                 `bigquery:"file_kind"`         // NULLABLE
	Source           string                 `bigquery:"source"`            // NULLABLE
	Status           string                 `bigquery:"status"`            // REQUIRED
	Error            string                 `bigquery:"error"`             // NULLABLE
	SampleData       bool                   `bigquery:"sample_data"`       // NULLABLE
	SkippedRows      int64                  `bigquery:"skipped_rows"`      // NULLABLE
	DateRangeStart   bigquery.NullDate      `bigquery:"date_range_start"`  // NULLABLE
	DateRangeEnd     bigquery.NullDate      `bigquery:"date_range_end"`    // NULLABLE
	Description      string                 `bigquery:"description"`       // NULLABLE
	CreatedAt        time.Time              `bigquery:"created_at"`        // REQUIRED
	UpdatedAt        time.Time              `bigquery:"updated_at"`        // REQUIRED
	ProcessedAt      bigquery.NullTimestamp `bigquery:"processed_at"`      // NULLABLE
}

func uploadToRow(u *domain.Upload) *uploadRow {
	return &uploadRow{
		ID:               u.ID,
		UserID:           u.UserID,
		StorageURI:       u.StorageURI,
		OriginalFilename: u.OriginalFilename,
		FileSize:         u.FileSize,
		FileKind:         string(u.FileKind),
		Source:           string(u.Source),
		Status:           string(u.Status),
		Error:            u.Error,
		SampleData:       u.SampleData,
		SkippedRows:      int64(u.SkippedRows),
		DateRangeStart:   nullDate(u.DateRangeStart),
		DateRangeEnd:     nullDate(u.DateRangeEnd),
		Description:      u.Description,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
		ProcessedAt:      nullTS(u.ProcessedAt),
	}
}

func (r *uploadRow) toDomain() *domain.Upload {
	return &domain.Upload{
		ID:               r.ID,
		UserID:           r.UserID,
		StorageURI:       r.StorageURI,
		OriginalFilename: r.OriginalFilename,
		FileSize:         r.FileSize,
		FileKind:         domain.FileKind(r.FileKind),
		Source:           domain.SourcePlatform(r.Source),
		Status:           domain.UploadStatus(r.Status),
		Error:            r.Error,
		SampleData:       r.SampleData,
		SkippedRows:      int(r.SkippedRows),
		DateRangeStart:   datePtr(r.DateRangeStart),
		DateRangeEnd:     datePtr(r.DateRangeEnd),
		Description:      r.Description,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
		ProcessedAt:      tsPtr(r.ProcessedAt),
	}
}

// transactionRow mirrors the transactions table schema. Amount is a NUMERIC
// column, surfaced as *big.Rat by the BigQuery client.
type transactionRow struct {
	ID               string    `bigquery:"id"`        // REQUIRED
	UserID           string    `bigquery:"user_id"`   // REQUIRED
	UploadID         string    `bigquery:"upload_id"` // NULLABLE
	Date             time.Time `bigquery:"date"`      // REQUIRED
	Amount           *big.Rat  `bigquery:"amount"`    // REQUIRED
	Currency         string    `bigquery:"currency"`  // REQUIRED
	Description      string    `bigquery:"description"`
	Reference        string    `bigquery:"reference"`
	Direction        string    `bigquery:"direction"` // REQUIRED
	Category         string    `bigquery:"category"`
	Subcategory      string    `bigquery:"subcategory"`
	AICategorized    bool      `bigquery:"ai_categorized"`
	AIConfidence     string    `bigquery:"ai_confidence"`
	AIRationale      string    `bigquery:"ai_rationale"`
	ManuallyVerified bool      `bigquery:"manually_verified"`
	ManualNotes      string    `bigquery:"manual_notes"`
	SourcePlatform   string    `bigquery:"source_platform"`
	Counterparty     string    `bigquery:"counterparty"`
	IsAnomaly        bool      `bigquery:"is_anomaly"`
	AnomalyReason    string    `bigquery:"anomaly_reason"`
	IsRecurring      bool      `bigquery:"is_recurring"`
	CreatedAt        time.Time `bigquery:"created_at"` // REQUIRED
	UpdatedAt        time.Time `bigquery:"updated_at"` // REQUIRED
}

func transactionToRow(t *domain.Transaction) *transactionRow {
	return &transactionRow{
		ID:               t.ID,
		UserID:           t.UserID,
		UploadID:         t.UploadID,
		Date:             t.Date,
		Amount:           t.Amount.Rat(),
		Currency:         t.Currency,
		Description:      t.Description,
		Reference:        t.Reference,
		Direction:        string(t.Direction),
		Category:         string(t.Category),
		Subcategory:      t.Subcategory,
		AICategorized:    t.AICategorized,
		AIConfidence:     string(t.AIConfidence),
		AIRationale:      t.AIRationale,
		ManuallyVerified: t.ManuallyVerified,
		ManualNotes:      t.ManualNotes,
		SourcePlatform:   t.SourcePlatform,
		Counterparty:     t.Counterparty,
		IsAnomaly:        t.IsAnomaly,
		AnomalyReason:    t.AnomalyReason,
		IsRecurring:      t.IsRecurring,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
}

func (r *transactionRow) toDomain() *domain.Transaction {
	return &domain.Transaction{
		ID:               r.ID,
		UserID:           r.UserID,
		UploadID:         r.UploadID,
		Date:             r.Date,
		Amount:           decimalFromRat(r.Amount),
		Currency:         r.Currency,
		Description:      r.Description,
		Reference:        r.Reference,
		Direction:        domain.Direction(r.Direction),
		Category:         domain.Category(r.Category),
		Subcategory:      r.Subcategory,
		AICategorized:    r.AICategorized,
		AIConfidence:     domain.Confidence(r.AIConfidence),
		AIRationale:      r.AIRationale,
		ManuallyVerified: r.ManuallyVerified,
		ManualNotes:      r.ManualNotes,
		SourcePlatform:   r.SourcePlatform,
		Counterparty:     r.Counterparty,
		IsAnomaly:        r.IsAnomaly,
		AnomalyReason:    r.AnomalyReason,
		IsRecurring:      r.IsRecurring,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

// jobRow mirrors the ai_jobs table schema.
type jobRow struct {
	ID             string                 `bigquery:"id"`      // REQUIRED
	UserID         string                 `bigquery:"user_id"` // REQUIRED
	Kind           string                 `bigquery:"kind"`    // REQUIRED
	TransactionIDs []string               `bigquery:"transaction_ids"`
	UploadID       string                 `bigquery:"upload_id"`
	DateFrom       bigquery.NullTimestamp `bigquery:"date_from"`
	DateTo         bigquery.NullTimestamp `bigquery:"date_to"`
	Status         string                 `bigquery:"status"` // REQUIRED
	Error          string                 `bigquery:"error"`
	Output         string                 `bigquery:"output"`
	ModelName      string                 `bigquery:"model_name"`
	InputTokens    int64                  `bigquery:"input_tokens"`
	OutputTokens   int64                  `bigquery:"output_tokens"`
	CostUSD        *big.Rat               `bigquery:"cost_usd"`
	LatencyMS      int64                  `bigquery:"latency_ms"`
	CreatedAt      time.Time              `bigquery:"created_at"` // REQUIRED
	StartedAt      bigquery.NullTimestamp `bigquery:"started_at"`
	CompletedAt    bigquery.NullTimestamp `bigquery:"completed_at"`
}

func jobToRow(j *domain.CategorizationJob) *jobRow {
	return &jobRow{
		ID:             j.ID,
		UserID:         j.UserID,
		Kind:           string(j.Kind),
		TransactionIDs: j.TransactionIDs,
		UploadID:       j.UploadID,
		DateFrom:       nullTS(j.DateFrom),
		DateTo:         nullTS(j.DateTo),
		Status:         string(j.Status),
		Error:          j.Error,
		Output:         j.Output,
		ModelName:      j.ModelName,
		InputTokens:    j.InputTokens,
		OutputTokens:   j.OutputTokens,
		CostUSD:        j.CostUSD.Rat(),
		LatencyMS:      j.LatencyMS,
		CreatedAt:      j.CreatedAt,
		StartedAt:      nullTS(j.StartedAt),
		CompletedAt:    nullTS(j.CompletedAt),
	}
}

func (r *jobRow) toDomain() *domain.CategorizationJob {
	return &domain.CategorizationJob{
		ID:             r.ID,
		UserID:         r.UserID,
		Kind:           domain.JobKind(r.Kind),
		TransactionIDs: r.TransactionIDs,
		UploadID:       r.UploadID,
		DateFrom:       tsPtr(r.DateFrom),
		DateTo:         tsPtr(r.DateTo),
		Status:         domain.JobStatus(r.Status),
		Error:          r.Error,
		Output:         r.Output,
		ModelName:      r.ModelName,
		InputTokens:    r.InputTokens,
		OutputTokens:   r.OutputTokens,
		CostUSD:        decimalFromRat(r.CostUSD),
		LatencyMS:      r.LatencyMS,
		CreatedAt:      r.CreatedAt,
		StartedAt:      tsPtr(r.StartedAt),
		CompletedAt:    tsPtr(r.CompletedAt),
	}
}

// reportRow mirrors the income_reports table schema. Breakdown maps and the
// monthly trends are stored as JSON-encoded STRING columns.
type reportRow struct {
	ID                 string `bigquery:"id"`      // REQUIRED
	UserID             string `bigquery:"user_id"` // REQUIRED
	ReportType         string `bigquery:"report_type"`
	DateFrom           time.Time `bigquery:"date_from"` // REQUIRED
	DateTo             time.Time `bigquery:"date_to"`   // REQUIRED
	Purpose            string `bigquery:"purpose"`
	PurposeDescription string `bigquery:"purpose_description"`
	Title              string `bigquery:"title"`
	Summary            string `bigquery:"summary"`

	TotalIncome          *big.Rat `bigquery:"total_income"`
	TotalExpenses        *big.Rat `bigquery:"total_expenses"`
	NetIncome            *big.Rat `bigquery:"net_income"`
	AverageMonthlyIncome *big.Rat `bigquery:"average_monthly_income"`

	IncomeBreakdown  string `bigquery:"income_breakdown"`
	ExpenseBreakdown string `bigquery:"expense_breakdown"`
	MonthlyTrends    string `bigquery:"monthly_trends"`

	DataSources      []string `bigquery:"data_sources"`
	TransactionCount int64    `bigquery:"transaction_count"`

	AIInsights        string   `bigquery:"ai_insights"`
	AnomaliesDetected []string `bigquery:"anomalies_detected"`
	ConfidenceScore   int64    `bigquery:"confidence_score"`

	ArtifactURI  string `bigquery:"artifact_uri"`
	FileSize     int64  `bigquery:"file_size"`
	DocumentHash string `bigquery:"document_hash"`

	VerificationCode string `bigquery:"verification_code"` // REQUIRED
	AccessToken      string `bigquery:"access_token"`      // REQUIRED

	IsPublic      bool                   `bigquery:"is_public"`
	ExpiresAt     bigquery.NullTimestamp `bigquery:"expires_at"`
	DownloadCount int64                  `bigquery:"download_count"`

	Status          string `bigquery:"status"` // REQUIRED
	GenerationError string `bigquery:"generation_error"`

	SignatureStatus      string                 `bigquery:"signature_status"`
	SignatureSubmittedAt bigquery.NullTimestamp `bigquery:"signature_submitted_at"`
	SignatureDecidedAt   bigquery.NullTimestamp `bigquery:"signature_decided_at"`
	SignatureReviewerID  string                 `bigquery:"signature_reviewer_id"`
	AdminNotes           string                 `bigquery:"admin_notes"`

	CreatedAt   time.Time              `bigquery:"created_at"` // REQUIRED
	UpdatedAt   time.Time              `bigquery:"updated_at"` // REQUIRED
	CompletedAt bigquery.NullTimestamp `bigquery:"completed_at"`
}

func reportToRow(r *domain.IncomeReport) *reportRow {
	return &reportRow{
		ID:                   r.ID,
		UserID:               r.UserID,
		ReportType:           string(r.ReportType),
		DateFrom:             r.DateFrom,
		DateTo:               r.DateTo,
		Purpose:              string(r.Purpose),
		PurposeDescription:   r.PurposeDescription,
		Title:                r.Title,
		Summary:              r.Summary,
		TotalIncome:          r.TotalIncome.Rat(),
		TotalExpenses:        r.TotalExpenses.Rat(),
		NetIncome:            r.NetIncome.Rat(),
		AverageMonthlyIncome: r.AverageMonthlyIncome.Rat(),
		IncomeBreakdown:      marshalJSON(r.IncomeBreakdown),
		ExpenseBreakdown:     marshalJSON(r.ExpenseBreakdown),
		MonthlyTrends:        marshalJSON(r.MonthlyTrends),
		DataSources:          r.DataSources,
		TransactionCount:     int64(r.TransactionCount),
		AIInsights:           r.AIInsights,
		AnomaliesDetected:    r.AnomaliesDetected,
		ConfidenceScore:      int64(r.ConfidenceScore),
		ArtifactURI:          r.ArtifactURI,
		FileSize:             r.FileSize,
		DocumentHash:         r.DocumentHash,
		VerificationCode:     r.VerificationCode,
		AccessToken:          r.AccessToken,
		IsPublic:             r.IsPublic,
		ExpiresAt:            nullTS(r.ExpiresAt),
		DownloadCount:        int64(r.DownloadCount),
		Status:               string(r.Status),
		GenerationError:      r.GenerationError,
		SignatureStatus:      string(r.SignatureStatus),
		SignatureSubmittedAt: nullTS(r.SignatureSubmittedAt),
		SignatureDecidedAt:   nullTS(r.SignatureDecidedAt),
		SignatureReviewerID:  r.SignatureReviewerID,
		AdminNotes:           r.AdminNotes,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
		CompletedAt:          nullTS(r.CompletedAt),
	}
}

func (r *reportRow) toDomain() *domain.IncomeReport {
	out := &domain.IncomeReport{
		ID:                   r.ID,
		UserID:               r.UserID,
		ReportType:           domain.ReportType(r.ReportType),
		DateFrom:             r.DateFrom,
		DateTo:               r.DateTo,
		Purpose:              domain.ReportPurpose(r.Purpose),
		PurposeDescription:   r.PurposeDescription,
		Title:                r.Title,
		Summary:              r.Summary,
		TotalIncome:          decimalFromRat(r.TotalIncome),
		TotalExpenses:        decimalFromRat(r.TotalExpenses),
		NetIncome:            decimalFromRat(r.NetIncome),
		AverageMonthlyIncome: decimalFromRat(r.AverageMonthlyIncome),
		DataSources:          r.DataSources,
		TransactionCount:     int(r.TransactionCount),
		AIInsights:           r.AIInsights,
		AnomaliesDetected:    r.AnomaliesDetected,
		ConfidenceScore:      int(r.ConfidenceScore),
		ArtifactURI:          r.ArtifactURI,
		FileSize:             r.FileSize,
		DocumentHash:         r.DocumentHash,
		VerificationCode:     r.VerificationCode,
		AccessToken:          r.AccessToken,
		IsPublic:             r.IsPublic,
		ExpiresAt:            tsPtr(r.ExpiresAt),
		DownloadCount:        int(r.DownloadCount),
		Status:               domain.ReportStatus(r.Status),
		GenerationError:      r.GenerationError,
		SignatureStatus:      domain.SignatureStatus(r.SignatureStatus),
		SignatureSubmittedAt: tsPtr(r.SignatureSubmittedAt),
		SignatureDecidedAt:   tsPtr(r.SignatureDecidedAt),
		SignatureReviewerID:  r.SignatureReviewerID,
		AdminNotes:           r.AdminNotes,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
		CompletedAt:          tsPtr(r.CompletedAt),
	}
	_ = json.Unmarshal([]byte(orEmptyJSON(r.IncomeBreakdown)), &out.IncomeBreakdown)
	_ = json.Unmarshal([]byte(orEmptyJSON(r.ExpenseBreakdown)), &out.ExpenseBreakdown)
	_ = json.Unmarshal([]byte(orEmptyJSON(r.MonthlyTrends)), &out.MonthlyTrends)
	return out
}

//
// Conversion helpers
//

func nullTS(t *time.Time) bigquery.NullTimestamp {
	if t == nil {
		return bigquery.NullTimestamp{}
	}
	return bigquery.NullTimestamp{Timestamp: *t, Valid: true}
}

func tsPtr(nt bigquery.NullTimestamp) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Timestamp
	return &t
}

func nullDate(t *time.Time) bigquery.NullDate {
	if t == nil {
		return bigquery.NullDate{}
	}
	return bigquery.NullDate{Date: civil.DateOf(*t), Valid: true}
}

func datePtr(nd bigquery.NullDate) *time.Time {
	if !nd.Valid {
		return nil
	}
	t := nd.Date.In(time.UTC)
	return &t
}

// decimalFromRat converts a NUMERIC value back to a two-place decimal.
func decimalFromRat(r *big.Rat) decimal.Decimal {
	if r == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(r.FloatString(2))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func marshalJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func orEmptyJSON(s string) string {
	if s == "" {
		return "{}"
	}
	return s
}
