package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kitako/incomeproof/internal/api/middleware"
	"github.com/kitako/incomeproof/internal/domain"
	"github.com/kitako/incomeproof/internal/jobs"
	"github.com/kitako/incomeproof/internal/report"
	"github.com/kitako/incomeproof/internal/store"
)

// ReportsHandler handles income report endpoints, including the public
// download and verification paths.
type ReportsHandler struct {
	reports    store.Reports
	calc       *report.Calculator
	issuer     *report.Issuer
	access     *report.Access
	publisher  jobs.Publisher
	expiryDays int
	log        zerolog.Logger
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(reports store.Reports, calc *report.Calculator, issuer *report.Issuer, access *report.Access, publisher jobs.Publisher, expiryDays int, log zerolog.Logger) *ReportsHandler {
	return &ReportsHandler{
		reports:    reports,
		calc:       calc,
		issuer:     issuer,
		access:     access,
		publisher:  publisher,
		expiryDays: expiryDays,
		log:        log,
	}
}

// Create handles POST /api/reports. Aggregation runs synchronously so the
// caller sees the figures immediately; artifact generation is handed to the
// worker. An empty date range yields a failed report, not an HTTP error.
func (h *ReportsHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserID(ctx)

	var req struct {
		ReportType         string `json:"report_type"`
		DateFrom           string `json:"date_from"`
		DateTo             string `json:"date_to"`
		Purpose            string `json:"purpose"`
		PurposeDescription string `json:"purpose_description"`
		Title              string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	dateFrom, err := time.Parse("2006-01-02", req.DateFrom)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "date_from is required in 2006-01-02 format")
		return
	}
	dateTo, err := time.Parse("2006-01-02", req.DateTo)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "date_to is required in 2006-01-02 format")
		return
	}
	if dateTo.Before(dateFrom) {
		middleware.WriteError(w, http.StatusBadRequest, "date_to must not precede date_from")
		return
	}

	reportType := domain.ReportType(req.ReportType)
	if reportType == "" {
		reportType = domain.ReportTypeCustom
	}
	purpose := domain.ReportPurpose(req.Purpose)
	if purpose == "" {
		purpose = domain.PurposeOther
	}

	code, err := h.issuer.NewVerificationCode(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to issue verification code")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to create report")
		return
	}
	token, err := h.issuer.NewAccessToken(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to issue access token")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to create report")
		return
	}

	now := time.Now()
	rep := &domain.IncomeReport{
		ID:                 uuid.NewString(),
		UserID:             userID,
		ReportType:         reportType,
		DateFrom:           dateFrom,
		DateTo:             dateTo,
		Purpose:            purpose,
		PurposeDescription: req.PurposeDescription,
		Title:              req.Title,
		VerificationCode:   code,
		AccessToken:        token,
		Status:             domain.ReportStatusGenerating,
		SignatureStatus:    domain.SignatureNotSubmitted,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if h.expiryDays > 0 {
		expires := now.AddDate(0, 0, h.expiryDays)
		rep.ExpiresAt = &expires
	}

	if err := h.reports.Insert(ctx, rep); err != nil {
		h.log.Error().Err(err).Msg("Failed to save report")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to save report")
		return
	}

	if err := h.calc.Compute(ctx, rep); err != nil {
		h.log.Error().Err(err).Str("report_id", rep.ID).Msg("Report aggregation failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to compute report")
		return
	}

	if rep.Status == domain.ReportStatusFailed {
		middleware.WriteJSON(w, http.StatusOK, toReportResponse(rep, h.issuer.VerificationURL(code)))
		return
	}

	task := &jobs.Task{Kind: jobs.TaskGenerateReport, UserID: userID, EntityID: rep.ID}
	if err := h.publisher.Publish(ctx, task); err != nil {
		h.log.Error().Err(err).Str("report_id", rep.ID).Msg("Failed to enqueue report generation")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue report generation")
		return
	}

	h.log.Info().
		Str("report_id", rep.ID).
		Str("verification_code", code).
		Msg("Report created")
	middleware.WriteJSON(w, http.StatusAccepted, toReportResponse(rep, h.issuer.VerificationURL(code)))
}

// List handles GET /api/reports.
func (h *ReportsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	list, err := h.reports.List(ctx, middleware.UserID(ctx))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list reports")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list reports")
		return
	}

	out := make([]*reportResponse, 0, len(list))
	for _, rep := range list {
		out = append(out, toReportResponse(rep, h.issuer.VerificationURL(rep.VerificationCode)))
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"reports": out,
		"count":   len(out),
	})
}

// Get handles GET /api/reports/{id}.
func (h *ReportsHandler) Get(w http.ResponseWriter, r *http.Request, reportID string) {
	ctx := r.Context()

	rep, err := h.reports.Get(ctx, middleware.UserID(ctx), reportID)
	if errors.Is(err, store.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Report not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("report_id", reportID).Msg("Failed to get report")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get report")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, toReportResponse(rep, h.issuer.VerificationURL(rep.VerificationCode)))
}

// Delete handles DELETE /api/reports/{id}.
func (h *ReportsHandler) Delete(w http.ResponseWriter, r *http.Request, reportID string) {
	ctx := r.Context()

	err := h.reports.Delete(ctx, middleware.UserID(ctx), reportID)
	if errors.Is(err, store.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Report not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("report_id", reportID).Msg("Failed to delete report")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete report")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Download handles GET /api/reports/{id}/download?token=... This path is
// public: possession of the access token authorizes, not ownership.
func (h *ReportsHandler) Download(w http.ResponseWriter, r *http.Request, reportID string) {
	ctx := r.Context()
	token := r.URL.Query().Get("token")

	content, rep, err := h.access.Download(ctx, reportID, token)
	switch {
	case errors.Is(err, store.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, "Report not found")
		return
	case errors.Is(err, report.ErrInvalidAccessToken):
		middleware.WriteError(w, http.StatusForbidden, "Invalid access token")
		return
	case errors.Is(err, report.ErrReportExpired):
		middleware.WriteError(w, http.StatusGone, "Report has expired")
		return
	case errors.Is(err, report.ErrReportNotReady):
		middleware.WriteError(w, http.StatusConflict, "Report is not ready for download")
		return
	case err != nil:
		h.log.Error().Err(err).Str("report_id", reportID).Msg("Failed to download report")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to download report")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "income-report-"+rep.VerificationCode+".txt"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

// Verify handles GET /api/verify/{code}. Public; an unknown code is a
// negative result, not an error.
func (h *ReportsHandler) Verify(w http.ResponseWriter, r *http.Request, code string) {
	ctx := r.Context()

	v, err := h.access.Verify(ctx, code)
	if err != nil {
		h.log.Error().Err(err).Str("code", code).Msg("Failed to verify report")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to verify report")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, v)
}

// SubmitSignature handles POST /api/reports/{id}/signature, entering a
// completed report into the signature verification flow.
func (h *ReportsHandler) SubmitSignature(w http.ResponseWriter, r *http.Request, reportID string) {
	ctx := r.Context()

	err := h.issuer.SubmitSignature(ctx, middleware.UserID(ctx), reportID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, "Report not found")
		return
	case errors.Is(err, report.ErrReportNotCompleted):
		middleware.WriteError(w, http.StatusConflict, "Report must be completed before signature submission")
		return
	case err != nil:
		h.log.Error().Err(err).Str("report_id", reportID).Msg("Failed to submit signature")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to submit signature")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"signature_status": string(domain.SignaturePending)})
}

// DecideSignature handles POST /api/admin/reports/{id}/signature. The acting
// user is recorded as the reviewer.
func (h *ReportsHandler) DecideSignature(w http.ResponseWriter, r *http.Request, reportID string) {
	ctx := r.Context()

	var req struct {
		Approve bool   `json:"approve"`
		Notes   string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := h.issuer.DecideSignature(ctx, reportID, req.Approve, middleware.UserID(ctx), req.Notes)
	switch {
	case errors.Is(err, store.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, "Report not found")
		return
	case errors.Is(err, report.ErrSignatureNotPending):
		middleware.WriteError(w, http.StatusConflict, "Report has no pending signature submission")
		return
	case err != nil:
		h.log.Error().Err(err).Str("report_id", reportID).Msg("Failed to record signature decision")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to record signature decision")
		return
	}

	status := domain.SignatureRejected
	if req.Approve {
		status = domain.SignatureApproved
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"signature_status": string(status)})
}
