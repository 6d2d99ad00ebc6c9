package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/kitako/incomeproof/internal/api/middleware"
	"github.com/kitako/incomeproof/internal/domain"
	"github.com/kitako/incomeproof/internal/store"
)

// AIJobsHandler handles AI job status endpoints.
type AIJobsHandler struct {
	aiJobs store.Jobs
	log    zerolog.Logger
}

// NewAIJobsHandler creates a new AI jobs handler.
func NewAIJobsHandler(aiJobs store.Jobs, log zerolog.Logger) *AIJobsHandler {
	return &AIJobsHandler{aiJobs: aiJobs, log: log}
}

// List handles GET /api/ai-jobs.
func (h *AIJobsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	filter := store.JobFilter{
		Kind:   domain.JobKind(query.Get("kind")),
		Status: domain.JobStatus(query.Get("status")),
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	list, err := h.aiJobs.List(ctx, middleware.UserID(ctx), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  toJobResponses(list),
		"count": len(list),
	})
}

// Get handles GET /api/ai-jobs/{id}.
func (h *AIJobsHandler) Get(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx := r.Context()

	job, err := h.aiJobs.Get(ctx, middleware.UserID(ctx), jobID)
	if errors.Is(err, store.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, toJobResponse(job))
}

// Cancel handles POST /api/ai-jobs/{id}/cancel. Only pending jobs can be
// cancelled; a job already claimed by a worker runs to its terminal state.
func (h *AIJobsHandler) Cancel(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx := r.Context()

	job, err := h.aiJobs.Get(ctx, middleware.UserID(ctx), jobID)
	if errors.Is(err, store.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	swapped, err := h.aiJobs.CompareAndSwapStatus(ctx, jobID, domain.JobStatusPending, domain.JobStatusCancelled)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to cancel job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to cancel job")
		return
	}
	if !swapped {
		middleware.WriteError(w, http.StatusConflict, "Job is no longer pending")
		return
	}

	job.Status = domain.JobStatusCancelled
	middleware.WriteJSON(w, http.StatusOK, toJobResponse(job))
}
