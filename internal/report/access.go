package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kitako/incomeproof/internal/domain"
	"github.com/kitako/incomeproof/internal/filestore"
	"github.com/kitako/incomeproof/internal/store"
)

var (
	// ErrInvalidAccessToken is returned on a download attempt with a wrong
	// token.
	ErrInvalidAccessToken = errors.New("report: invalid access token")
	// ErrReportExpired is returned when the report's access window lapsed.
	ErrReportExpired = errors.New("report: report has expired")
	// ErrReportNotReady is returned when no artifact exists yet.
	ErrReportNotReady = errors.New("report: report is not ready for download")
)

// Verification is the public payload returned for a verification code.
type Verification struct {
	Code            string    `json:"code"`
	Valid           bool      `json:"valid"`
	Message         string    `json:"message"`
	Title           string    `json:"title,omitempty"`
	PeriodFrom      string    `json:"period_from,omitempty"`
	PeriodTo        string    `json:"period_to,omitempty"`
	DocumentHash    string    `json:"document_hash,omitempty"`
	SignatureStatus string    `json:"signature_status,omitempty"`
	GeneratedAt     time.Time `json:"generated_at,omitempty"`
}

// Access serves the public-facing report paths: token-gated downloads and
// verification by code.
type Access struct {
	reports store.Reports
	files   filestore.Store
}

// NewAccess wires an Access service.
func NewAccess(reports store.Reports, files filestore.Store) *Access {
	return &Access{reports: reports, files: files}
}

// Download returns the artifact bytes for a report, authorizing by access
// token instead of ownership. Expiry is checked and the download counter
// incremented on success.
func (a *Access) Download(ctx context.Context, reportID, token string) ([]byte, *domain.IncomeReport, error) {
	r, err := a.reports.GetAny(ctx, reportID)
	if err != nil {
		return nil, nil, fmt.Errorf("Download: loading report: %w", err)
	}

	if token == "" || token != r.AccessToken {
		return nil, nil, ErrInvalidAccessToken
	}
	if r.IsExpired(time.Now()) {
		// Lazily record the lapse so listings show it.
		_, _ = a.reports.CompareAndSwapStatus(ctx, reportID, domain.ReportStatusCompleted, domain.ReportStatusExpired)
		return nil, nil, ErrReportExpired
	}
	if r.Status != domain.ReportStatusCompleted || r.ArtifactURI == "" {
		return nil, nil, ErrReportNotReady
	}

	content, err := a.files.Fetch(ctx, r.ArtifactURI)
	if err != nil {
		return nil, nil, fmt.Errorf("Download: fetching artifact: %w", err)
	}

	if err := a.reports.IncrementDownloadCount(ctx, reportID); err != nil {
		return nil, nil, fmt.Errorf("Download: counting download: %w", err)
	}

	return content, r, nil
}

// Verify resolves a verification code into the public payload. Unknown codes
// yield a negative result, not an error.
func (a *Access) Verify(ctx context.Context, code string) (*Verification, error) {
	r, err := a.reports.GetByVerificationCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return &Verification{
			Code:    code,
			Valid:   false,
			Message: "No report matches this verification code",
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Verify: loading report: %w", err)
	}

	v := &Verification{
		Code:            code,
		Title:           r.Title,
		PeriodFrom:      r.DateFrom.Format("2006-01-02"),
		PeriodTo:        r.DateTo.Format("2006-01-02"),
		DocumentHash:    r.DocumentHash,
		SignatureStatus: string(r.SignatureStatus),
		GeneratedAt:     r.CreatedAt,
	}

	switch {
	case r.IsExpired(time.Now()):
		v.Message = "This report has expired"
	case r.Status != domain.ReportStatusCompleted:
		v.Message = "This report is not finalized"
	default:
		v.Valid = true
		v.Message = "This report was generated and is unmodified"
	}
	return v, nil
}
