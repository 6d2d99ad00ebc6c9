package handlers

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/kitako/incomeproof/internal/domain"
)

// Wire representations of the domain entities. The domain structs stay free
// of transport tags; these mirror them for JSON responses.

type uploadResponse struct {
	ID               string     `json:"id"`
	OriginalFilename string     `json:"original_filename"`
	FileSize         int64      `json:"file_size"`
	FileKind         string     `json:"file_kind"`
	Source           string     `json:"source"`
	Status           string     `json:"status"`
	Error            string     `json:"error,omitempty"`
	SampleData       bool       `json:"sample_data"`
	SkippedRows      int        `json:"skipped_rows"`
	DateRangeStart   *time.Time `json:"date_range_start,omitempty"`
	DateRangeEnd     *time.Time `json:"date_range_end,omitempty"`
	Description      string     `json:"description,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	ProcessedAt      *time.Time `json:"processed_at,omitempty"`
}

func toUploadResponse(u *domain.Upload) *uploadResponse {
	return &uploadResponse{
		ID:               u.ID,
		OriginalFilename: u.OriginalFilename,
		FileSize:         u.FileSize,
		FileKind:         string(u.FileKind),
		Source:           string(u.Source),
		Status:           string(u.Status),
		Error:            u.Error,
		SampleData:       u.SampleData,
		SkippedRows:      u.SkippedRows,
		DateRangeStart:   u.DateRangeStart,
		DateRangeEnd:     u.DateRangeEnd,
		Description:      u.Description,
		CreatedAt:        u.CreatedAt,
		ProcessedAt:      u.ProcessedAt,
	}
}

func toUploadResponses(ups []*domain.Upload) []*uploadResponse {
	out := make([]*uploadResponse, 0, len(ups))
	for _, u := range ups {
		out = append(out, toUploadResponse(u))
	}
	return out
}

type transactionResponse struct {
	ID               string    `json:"id"`
	UploadID         string    `json:"upload_id,omitempty"`
	Date             time.Time `json:"date"`
	Amount           string    `json:"amount"`
	Currency         string    `json:"currency"`
	Description      string    `json:"description"`
	Reference        string    `json:"reference,omitempty"`
	Direction        string    `json:"direction"`
	Category         string    `json:"category"`
	Subcategory      string    `json:"subcategory,omitempty"`
	AICategorized    bool      `json:"ai_categorized"`
	AIConfidence     string    `json:"ai_confidence,omitempty"`
	AIRationale      string    `json:"ai_rationale,omitempty"`
	ManuallyVerified bool      `json:"manually_verified"`
	ManualNotes      string    `json:"manual_notes,omitempty"`
	SourcePlatform   string    `json:"source_platform,omitempty"`
	Counterparty     string    `json:"counterparty,omitempty"`
	IsAnomaly        bool      `json:"is_anomaly"`
	AnomalyReason    string    `json:"anomaly_reason,omitempty"`
	IsRecurring      bool      `json:"is_recurring"`
	CreatedAt        time.Time `json:"created_at"`
}

func toTransactionResponse(t *domain.Transaction) *transactionResponse {
	return &transactionResponse{
		ID:               t.ID,
		UploadID:         t.UploadID,
		Date:             t.Date,
		Amount:           t.Amount.StringFixed(2),
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
	}
}

func toTransactionResponses(txs []*domain.Transaction) []*transactionResponse {
	out := make([]*transactionResponse, 0, len(txs))
	for _, t := range txs {
		out = append(out, toTransactionResponse(t))
	}
	return out
}

type jobResponse struct {
	ID             string     `json:"id"`
	Kind           string     `json:"kind"`
	TransactionIDs []string   `json:"transaction_ids,omitempty"`
	UploadID       string     `json:"upload_id,omitempty"`
	DateFrom       *time.Time `json:"date_from,omitempty"`
	DateTo         *time.Time `json:"date_to,omitempty"`
	Status         string     `json:"status"`
	Error          string     `json:"error,omitempty"`
	Output         string     `json:"output,omitempty"`
	ModelName      string     `json:"model_name,omitempty"`
	InputTokens    int64      `json:"input_tokens,omitempty"`
	OutputTokens   int64      `json:"output_tokens,omitempty"`
	CostUSD        string     `json:"cost_usd,omitempty"`
	LatencyMS      int64      `json:"latency_ms,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

func toJobResponse(j *domain.CategorizationJob) *jobResponse {
	res := &jobResponse{
		ID:             j.ID,
		Kind:           string(j.Kind),
		TransactionIDs: j.TransactionIDs,
		UploadID:       j.UploadID,
		DateFrom:       j.DateFrom,
		DateTo:         j.DateTo,
		Status:         string(j.Status),
		Error:          j.Error,
		Output:         j.Output,
		ModelName:      j.ModelName,
		InputTokens:    j.InputTokens,
		OutputTokens:   j.OutputTokens,
		LatencyMS:      j.LatencyMS,
		CreatedAt:      j.CreatedAt,
		StartedAt:      j.StartedAt,
		CompletedAt:    j.CompletedAt,
	}
	if !j.CostUSD.IsZero() {
		res.CostUSD = j.CostUSD.String()
	}
	return res
}

func toJobResponses(js []*domain.CategorizationJob) []*jobResponse {
	out := make([]*jobResponse, 0, len(js))
	for _, j := range js {
		out = append(out, toJobResponse(j))
	}
	return out
}

type monthlyTotalsResponse struct {
	Income   string `json:"income"`
	Expenses string `json:"expenses"`
}

type reportResponse struct {
	ID                   string                           `json:"id"`
	ReportType           string                           `json:"report_type"`
	DateFrom             string                           `json:"date_from"`
	DateTo               string                           `json:"date_to"`
	Purpose              string                           `json:"purpose"`
	PurposeDescription   string                           `json:"purpose_description,omitempty"`
	Title                string                           `json:"title"`
	Summary              string                           `json:"summary,omitempty"`
	TotalIncome          string                           `json:"total_income"`
	TotalExpenses        string                           `json:"total_expenses"`
	NetIncome            string                           `json:"net_income"`
	AverageMonthlyIncome string                           `json:"average_monthly_income"`
	IncomeBreakdown      map[string]string                `json:"income_breakdown,omitempty"`
	ExpenseBreakdown     map[string]string                `json:"expense_breakdown,omitempty"`
	MonthlyTrends        map[string]monthlyTotalsResponse `json:"monthly_trends,omitempty"`
	DataSources          []string                         `json:"data_sources,omitempty"`
	TransactionCount     int                              `json:"transaction_count"`
	AIInsights           string                           `json:"ai_insights,omitempty"`
	AnomaliesDetected    []string                         `json:"anomalies_detected,omitempty"`
	ConfidenceScore      int                              `json:"confidence_score"`
	FileSize             int64                            `json:"file_size,omitempty"`
	DocumentHash         string                           `json:"document_hash,omitempty"`
	VerificationCode     string                           `json:"verification_code"`
	AccessToken          string                           `json:"access_token"`
	VerificationURL      string                           `json:"verification_url,omitempty"`
	ExpiresAt            *time.Time                       `json:"expires_at,omitempty"`
	DownloadCount        int                              `json:"download_count"`
	Status               string                           `json:"status"`
	GenerationError      string                           `json:"generation_error,omitempty"`
	SignatureStatus      string                           `json:"signature_status"`
	SignatureSubmittedAt *time.Time                       `json:"signature_submitted_at,omitempty"`
	SignatureDecidedAt   *time.Time                       `json:"signature_decided_at,omitempty"`
	AdminNotes           string                           `json:"admin_notes,omitempty"`
	CreatedAt            time.Time                        `json:"created_at"`
	CompletedAt          *time.Time                       `json:"completed_at,omitempty"`
}

func toReportResponse(r *domain.IncomeReport, verificationURL string) *reportResponse {
	return &reportResponse{
		ID:                   r.ID,
		ReportType:           string(r.ReportType),
		DateFrom:             r.DateFrom.Format("2006-01-02"),
		DateTo:               r.DateTo.Format("2006-01-02"),
		Purpose:              string(r.Purpose),
		PurposeDescription:   r.PurposeDescription,
		Title:                r.Title,
		Summary:              r.Summary,
		TotalIncome:          r.TotalIncome.StringFixed(2),
		TotalExpenses:        r.TotalExpenses.StringFixed(2),
		NetIncome:            r.NetIncome.StringFixed(2),
		AverageMonthlyIncome: r.AverageMonthlyIncome.StringFixed(2),
		IncomeBreakdown:      toAmountMap(r.IncomeBreakdown),
		ExpenseBreakdown:     toAmountMap(r.ExpenseBreakdown),
		MonthlyTrends:        toTrendsMap(r.MonthlyTrends),
		DataSources:          r.DataSources,
		TransactionCount:     r.TransactionCount,
		AIInsights:           r.AIInsights,
		AnomaliesDetected:    r.AnomaliesDetected,
		ConfidenceScore:      r.ConfidenceScore,
		FileSize:             r.FileSize,
		DocumentHash:         r.DocumentHash,
		VerificationCode:     r.VerificationCode,
		AccessToken:          r.AccessToken,
		VerificationURL:      verificationURL,
		ExpiresAt:            r.ExpiresAt,
		DownloadCount:        r.DownloadCount,
		Status:               string(r.Status),
		GenerationError:      r.GenerationError,
		SignatureStatus:      string(r.SignatureStatus),
		SignatureSubmittedAt: r.SignatureSubmittedAt,
		SignatureDecidedAt:   r.SignatureDecidedAt,
		AdminNotes:           r.AdminNotes,
		CreatedAt:            r.CreatedAt,
		CompletedAt:          r.CompletedAt,
	}
}

func toAmountMap(m map[string]decimal.Decimal) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v.StringFixed(2)
	}
	return out
}

func toTrendsMap(m map[string]domain.MonthlyTotals) map[string]monthlyTotalsResponse {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]monthlyTotalsResponse, len(m))
	for k, v := range m {
		out[k] = monthlyTotalsResponse{
			Income:   v.Income.StringFixed(2),
			Expenses: v.Expenses.StringFixed(2),
		}
	}
	return out
}
