package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReportType is the requested reporting window shape.
type ReportType string

const (
	ReportTypeMonthly   ReportType = "monthly"
	ReportTypeQuarterly ReportType = "quarterly"
	ReportTypeAnnual    ReportType = "annual"
	ReportTypeCustom    ReportType = "custom"
)

// ReportPurpose is the declared use of a generated report.
type ReportPurpose string

const (
	PurposeLoanApplication      ReportPurpose = "loan_application"
	PurposeGovernmentSubsidy    ReportPurpose = "government_subsidy"
	PurposeInsuranceApplication ReportPurpose = "insurance_application"
	PurposeRentalApplication    ReportPurpose = "rental_application"
	PurposeBusinessRegistration ReportPurpose = "business_registration"
	PurposeVisaApplication      ReportPurpose = "visa_application"
	PurposeOther                ReportPurpose = "other"
)

// ReportStatus is the generation state of an IncomeReport artifact.
type ReportStatus string

const (
	ReportStatusGenerating ReportStatus = "generating"
	ReportStatusCompleted  ReportStatus = "completed"
	ReportStatusFailed     ReportStatus = "failed"
	ReportStatusExpired    ReportStatus = "expired"
)

// SignatureStatus is the signature-verification sub-state of a report.
//
// not_submitted → pending (owner submits) → approved | rejected (admin).
// Approved and rejected are terminal.
type SignatureStatus string

const (
	SignatureNotSubmitted SignatureStatus = "not_submitted"
	SignaturePending      SignatureStatus = "pending"
	SignatureApproved     SignatureStatus = "approved"
	SignatureRejected     SignatureStatus = "rejected"
)

// MonthlyTotals is one month's income/expense sums in a trend mapping.
type MonthlyTotals struct {
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
}

// IncomeReport is one generated, verifiable proof-of-income artifact.
type IncomeReport struct {
	ID     string
	UserID string

	ReportType         ReportType
	DateFrom           time.Time
	DateTo             time.Time
	Purpose            ReportPurpose
	PurposeDescription string

	Title   string
	Summary string

	TotalIncome          decimal.Decimal
	TotalExpenses        decimal.Decimal
	NetIncome            decimal.Decimal
	AverageMonthlyIncome decimal.Decimal

	IncomeBreakdown  map[string]decimal.Decimal
	ExpenseBreakdown map[string]decimal.Decimal
	MonthlyTrends    map[string]MonthlyTotals

	DataSources      []string
	TransactionCount int

	AIInsights        string
	AnomaliesDetected []string
	// ConfidenceScore is a heuristic 0-100 data-quality measure, not a
	// statistical confidence interval.
	ConfidenceScore int

	// Generated artifact. DocumentHash is computed exactly once, after the
	// artifact bytes exist, and never recomputed.
	ArtifactURI  string
	FileSize     int64
	DocumentHash string

	// VerificationCode and AccessToken are globally unique and immutable
	// once assigned.
	VerificationCode string
	AccessToken      string

	IsPublic      bool
	ExpiresAt     *time.Time
	DownloadCount int

	Status          ReportStatus
	GenerationError string

	SignatureStatus      SignatureStatus
	SignatureSubmittedAt *time.Time
	SignatureDecidedAt   *time.Time
	SignatureReviewerID  string
	AdminNotes           string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// IsExpired reports whether the report's access window has lapsed.
func (r *IncomeReport) IsExpired(now time.Time) bool {
	return r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}

// SignatureSubmitted reports whether the report has entered the signature
// verification flow.
func (r *IncomeReport) SignatureSubmitted() bool {
	return r.SignatureStatus != SignatureNotSubmitted && r.SignatureStatus != ""
}
