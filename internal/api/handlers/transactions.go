package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/kitako/incomeproof/internal/api/middleware"
	"github.com/kitako/incomeproof/internal/domain"
	"github.com/kitako/incomeproof/internal/jobs"
	"github.com/kitako/incomeproof/internal/report"
	"github.com/kitako/incomeproof/internal/store"
)

// TransactionsHandler handles transaction endpoints.
type TransactionsHandler struct {
	txs       store.Transactions
	aiJobs    store.Jobs
	publisher jobs.Publisher
	detector  *report.Detector
	log       zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(txs store.Transactions, aiJobs store.Jobs, publisher jobs.Publisher, detector *report.Detector, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{
		txs:       txs,
		aiJobs:    aiJobs,
		publisher: publisher,
		detector:  detector,
		log:       log,
	}
}

// List handles GET /api/transactions with optional filters.
func (h *TransactionsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	filter := store.TransactionFilter{
		UploadID:  query.Get("upload_id"),
		Direction: domain.Direction(query.Get("direction")),
		Category:  domain.Category(query.Get("category")),
		Source:    query.Get("source"),
		Search:    query.Get("search"),
	}

	var err error
	if filter.DateFrom, err = parseDateParam(query.Get("date_from")); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid date_from format")
		return
	}
	if filter.DateTo, err = parseDateParam(query.Get("date_to")); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid date_to format")
		return
	}

	txs, err := h.txs.List(ctx, middleware.UserID(ctx), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": toTransactionResponses(txs),
		"count":        len(txs),
	})
}

// Get handles GET /api/transactions/{id}.
func (h *TransactionsHandler) Get(w http.ResponseWriter, r *http.Request, txID string) {
	ctx := r.Context()

	tx, err := h.txs.Get(ctx, middleware.UserID(ctx), txID)
	if errors.Is(err, store.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Transaction not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("transaction_id", txID).Msg("Failed to get transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get transaction")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, toTransactionResponse(tx))
}

// Update handles PATCH /api/transactions/{id}. Only the provided fields
// change; a manual category or direction edit marks the transaction verified.
func (h *TransactionsHandler) Update(w http.ResponseWriter, r *http.Request, txID string) {
	ctx := r.Context()

	var req struct {
		Category         *string `json:"category"`
		Subcategory      *string `json:"subcategory"`
		Direction        *string `json:"direction"`
		Description      *string `json:"description"`
		Counterparty     *string `json:"counterparty"`
		ManualNotes      *string `json:"manual_notes"`
		ManuallyVerified *bool   `json:"manually_verified"`
		IsRecurring      *bool   `json:"is_recurring"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	tx, err := h.txs.Get(ctx, middleware.UserID(ctx), txID)
	if errors.Is(err, store.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Transaction not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("transaction_id", txID).Msg("Failed to get transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get transaction")
		return
	}

	if req.Category != nil {
		c := domain.Category(*req.Category)
		if !domain.ValidCategory(c) {
			middleware.WriteError(w, http.StatusBadRequest, fmt.Sprintf("Unknown category %q", *req.Category))
			return
		}
		tx.Category = c
		tx.ManuallyVerified = true
	}
	if req.Direction != nil {
		d := domain.Direction(*req.Direction)
		if !domain.ValidDirection(d) {
			middleware.WriteError(w, http.StatusBadRequest, fmt.Sprintf("Unknown direction %q", *req.Direction))
			return
		}
		tx.Direction = d
		tx.ManuallyVerified = true
	}
	if req.Subcategory != nil {
		tx.Subcategory = *req.Subcategory
	}
	if req.Description != nil {
		tx.Description = *req.Description
	}
	if req.Counterparty != nil {
		tx.Counterparty = *req.Counterparty
	}
	if req.ManualNotes != nil {
		tx.ManualNotes = *req.ManualNotes
	}
	if req.ManuallyVerified != nil {
		tx.ManuallyVerified = *req.ManuallyVerified
	}
	if req.IsRecurring != nil {
		tx.IsRecurring = *req.IsRecurring
	}
	tx.UpdatedAt = time.Now()

	if err := h.txs.Update(ctx, tx); err != nil {
		h.log.Error().Err(err).Str("transaction_id", txID).Msg("Failed to update transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to update transaction")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, toTransactionResponse(tx))
}

// BulkUpdate handles POST /api/transactions/bulk-update, applying the same
// category or direction change to a set of transactions in one call.
func (h *TransactionsHandler) BulkUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserID(ctx)

	var req struct {
		TransactionIDs   []string `json:"transaction_ids"`
		Category         *string  `json:"category"`
		Direction        *string  `json:"direction"`
		ManuallyVerified *bool    `json:"manually_verified"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.TransactionIDs) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "transaction_ids is required")
		return
	}
	if req.Category != nil && !domain.ValidCategory(domain.Category(*req.Category)) {
		middleware.WriteError(w, http.StatusBadRequest, fmt.Sprintf("Unknown category %q", *req.Category))
		return
	}
	if req.Direction != nil && !domain.ValidDirection(domain.Direction(*req.Direction)) {
		middleware.WriteError(w, http.StatusBadRequest, fmt.Sprintf("Unknown direction %q", *req.Direction))
		return
	}

	txs, err := h.txs.List(ctx, userID, store.TransactionFilter{IDs: req.TransactionIDs})
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to update transactions")
		return
	}

	updated := 0
	for _, tx := range txs {
		if req.Category != nil {
			tx.Category = domain.Category(*req.Category)
			tx.ManuallyVerified = true
		}
		if req.Direction != nil {
			tx.Direction = domain.Direction(*req.Direction)
			tx.ManuallyVerified = true
		}
		if req.ManuallyVerified != nil {
			tx.ManuallyVerified = *req.ManuallyVerified
		}
		tx.UpdatedAt = time.Now()
		if err := h.txs.Update(ctx, tx); err != nil {
			h.log.Error().Err(err).Str("transaction_id", tx.ID).Msg("Failed to update transaction")
			continue
		}
		updated++
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]int{
		"updated":   updated,
		"requested": len(req.TransactionIDs),
	})
}

// Delete handles DELETE /api/transactions/{id}.
func (h *TransactionsHandler) Delete(w http.ResponseWriter, r *http.Request, txID string) {
	ctx := r.Context()

	err := h.txs.Delete(ctx, middleware.UserID(ctx), txID)
	if errors.Is(err, store.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Transaction not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("transaction_id", txID).Msg("Failed to delete transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete transaction")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Summary handles GET /api/transactions/summary, returning quick totals for
// a date range without generating a report.
func (h *TransactionsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	filter := store.TransactionFilter{}
	var err error
	if filter.DateFrom, err = parseDateParam(query.Get("date_from")); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid date_from format")
		return
	}
	if filter.DateTo, err = parseDateParam(query.Get("date_to")); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid date_to format")
		return
	}

	txs, err := h.txs.List(ctx, middleware.UserID(ctx), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to summarize transactions")
		return
	}

	var income, expenses decimal.Decimal
	uncategorized := 0
	for _, tx := range txs {
		switch {
		case tx.IsIncome():
			income = income.Add(tx.Amount)
		case tx.IsExpense():
			expenses = expenses.Add(tx.Amount)
		}
		if tx.Uncategorized() {
			uncategorized++
		}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"total_income":   income.StringFixed(2),
		"total_expenses": expenses.StringFixed(2),
		"net_income":     income.Sub(expenses).StringFixed(2),
		"count":          len(txs),
		"uncategorized":  uncategorized,
	})
}

type jobRequest struct {
	TransactionIDs []string `json:"transaction_ids"`
	UploadID       string   `json:"upload_id"`
	DateFrom       string   `json:"date_from"`
	DateTo         string   `json:"date_to"`
}

// Categorize handles POST /api/transactions/categorize. It records a pending
// categorization job and enqueues it for the worker.
func (h *TransactionsHandler) Categorize(w http.ResponseWriter, r *http.Request) {
	h.enqueueAIJob(w, r, domain.JobKindCategorizeTransactions, jobs.TaskCategorizeTransactions)
}

// Summarize handles POST /api/transactions/summarize, enqueuing a narrative
// summary job over a date range.
func (h *TransactionsHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	h.enqueueAIJob(w, r, domain.JobKindGenerateSummary, jobs.TaskGenerateSummary)
}

func (h *TransactionsHandler) enqueueAIJob(w http.ResponseWriter, r *http.Request, kind domain.JobKind, taskKind jobs.TaskKind) {
	ctx := r.Context()
	userID := middleware.UserID(ctx)

	var req jobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	dateFrom, err := parseDateParam(req.DateFrom)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid date_from format")
		return
	}
	dateTo, err := parseDateParam(req.DateTo)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid date_to format")
		return
	}

	job := &domain.CategorizationJob{
		ID:             uuid.NewString(),
		UserID:         userID,
		Kind:           kind,
		TransactionIDs: req.TransactionIDs,
		UploadID:       req.UploadID,
		DateFrom:       dateFrom,
		DateTo:         dateTo,
		Status:         domain.JobStatusPending,
		CreatedAt:      time.Now(),
	}
	if err := h.aiJobs.Insert(ctx, job); err != nil {
		h.log.Error().Err(err).Msg("Failed to save job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to save job")
		return
	}

	task := &jobs.Task{Kind: taskKind, UserID: userID, EntityID: job.ID}
	if err := h.publisher.Publish(ctx, task); err != nil {
		h.log.Error().Err(err).Str("job_id", job.ID).Msg("Failed to enqueue job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue job")
		return
	}

	h.log.Info().Str("job_id", job.ID).Str("kind", string(kind)).Msg("AI job enqueued")
	middleware.WriteJSON(w, http.StatusAccepted, toJobResponse(job))
}

// DetectAnomalies handles POST /api/transactions/detect-anomalies. The
// category-average pass is cheap enough to run synchronously; the run is
// still recorded as a job for the usage history.
func (h *TransactionsHandler) DetectAnomalies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserID(ctx)

	var req struct {
		TransactionIDs []string `json:"transaction_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	now := time.Now()
	job := &domain.CategorizationJob{
		ID:             uuid.NewString(),
		UserID:         userID,
		Kind:           domain.JobKindDetectAnomalies,
		TransactionIDs: req.TransactionIDs,
		Status:         domain.JobStatusProcessing,
		CreatedAt:      now,
		StartedAt:      &now,
	}
	if err := h.aiJobs.Insert(ctx, job); err != nil {
		h.log.Error().Err(err).Msg("Failed to save job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to save job")
		return
	}

	flagged, err := h.detector.DetectAnomalies(ctx, userID, req.TransactionIDs)
	completedAt := time.Now()
	job.CompletedAt = &completedAt
	job.LatencyMS = completedAt.Sub(now).Milliseconds()
	if err != nil {
		job.Status = domain.JobStatusFailed
		job.Error = err.Error()
		_ = h.aiJobs.Update(ctx, job)
		h.log.Error().Err(err).Msg("Anomaly detection failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Anomaly detection failed")
		return
	}

	out, _ := json.Marshal(map[string]int{"flagged_count": len(flagged)})
	job.Status = domain.JobStatusCompleted
	job.Output = string(out)
	if err := h.aiJobs.Update(ctx, job); err != nil {
		h.log.Error().Err(err).Str("job_id", job.ID).Msg("Failed to record detection run")
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"job_id":  job.ID,
		"flagged": toTransactionResponses(flagged),
		"count":   len(flagged),
	})
}

// parseDateParam parses an optional 2006-01-02 value.
func parseDateParam(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
