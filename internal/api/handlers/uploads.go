package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kitako/incomeproof/internal/api/middleware"
	"github.com/kitako/incomeproof/internal/domain"
	"github.com/kitako/incomeproof/internal/filestore"
	"github.com/kitako/incomeproof/internal/ingest"
	"github.com/kitako/incomeproof/internal/jobs"
	"github.com/kitako/incomeproof/internal/store"
)

// maxUploadBytes caps accepted document size at 10 MB.
const maxUploadBytes = 10 << 20

var acceptedExtensions = map[string]bool{
	".csv":  true,
	".txt":  true,
	".xlsx": true,
	".xls":  true,
	".pdf":  true,
}

// UploadsHandler handles document upload endpoints.
type UploadsHandler struct {
	uploads   store.Uploads
	txs       store.Transactions
	files     filestore.Store
	processor *ingest.Processor
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewUploadsHandler creates a new uploads handler.
func NewUploadsHandler(uploads store.Uploads, txs store.Transactions, files filestore.Store, processor *ingest.Processor, publisher jobs.Publisher, log zerolog.Logger) *UploadsHandler {
	return &UploadsHandler{
		uploads:   uploads,
		txs:       txs,
		files:     files,
		processor: processor,
		publisher: publisher,
		log:       log,
	}
}

// Create handles POST /api/uploads. The document arrives as multipart form
// data; source and file_kind travel as form fields. The stored upload starts
// in "uploaded" and a processing task is enqueued.
func (h *UploadsHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserID(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid multipart request or file too large")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	ext := strings.ToLower(filepath.Ext(filename))
	if !acceptedExtensions[ext] {
		middleware.WriteError(w, http.StatusBadRequest, fmt.Sprintf("Unsupported file format %q", ext))
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Could not read uploaded file")
		return
	}

	source := domain.SourcePlatform(r.FormValue("source"))
	if source == "" {
		source = domain.SourceOther
	}
	fileKind := domain.FileKind(r.FormValue("file_kind"))
	if fileKind == "" {
		fileKind = domain.FileKindOther
	}

	uploadID := uuid.NewString()
	objectName := fmt.Sprintf("uploads/%s/%s-%s", userID, uploadID, filename)
	uri, err := h.files.Save(ctx, objectName, content)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to store uploaded file")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to store uploaded file")
		return
	}

	now := time.Now()
	up := &domain.Upload{
		ID:               uploadID,
		UserID:           userID,
		StorageURI:       uri,
		OriginalFilename: filename,
		FileSize:         int64(len(content)),
		FileKind:         fileKind,
		Source:           source,
		Status:           domain.UploadStatusUploaded,
		Description:      r.FormValue("description"),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := h.uploads.Insert(ctx, up); err != nil {
		h.log.Error().Err(err).Msg("Failed to save upload")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to save upload")
		return
	}

	task := &jobs.Task{Kind: jobs.TaskProcessUpload, UserID: userID, EntityID: uploadID}
	if err := h.publisher.Publish(ctx, task); err != nil {
		h.log.Error().Err(err).Str("upload_id", uploadID).Msg("Failed to enqueue processing")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue processing")
		return
	}

	h.log.Info().
		Str("upload_id", uploadID).
		Str("filename", filename).
		Int64("bytes", up.FileSize).
		Msg("Upload accepted")

	middleware.WriteJSON(w, http.StatusCreated, toUploadResponse(up))
}

// List handles GET /api/uploads.
func (h *UploadsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ups, err := h.uploads.List(ctx, middleware.UserID(ctx))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list uploads")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list uploads")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"uploads": toUploadResponses(ups),
		"count":   len(ups),
	})
}

// Get handles GET /api/uploads/{id}.
func (h *UploadsHandler) Get(w http.ResponseWriter, r *http.Request, uploadID string) {
	ctx := r.Context()

	up, err := h.uploads.Get(ctx, middleware.UserID(ctx), uploadID)
	if errors.Is(err, store.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Upload not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("upload_id", uploadID).Msg("Failed to get upload")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get upload")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, toUploadResponse(up))
}

// Delete handles DELETE /api/uploads/{id}. The stored file and all
// transactions materialized from the upload go with it.
func (h *UploadsHandler) Delete(w http.ResponseWriter, r *http.Request, uploadID string) {
	ctx := r.Context()

	err := h.processor.DeleteUpload(ctx, middleware.UserID(ctx), uploadID)
	if errors.Is(err, store.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Upload not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("upload_id", uploadID).Msg("Failed to delete upload")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete upload")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ListTransactions handles GET /api/uploads/{id}/transactions, returning the
// transactions materialized from one upload for the review screen.
func (h *UploadsHandler) ListTransactions(w http.ResponseWriter, r *http.Request, uploadID string) {
	ctx := r.Context()

	txs, err := h.txs.List(ctx, middleware.UserID(ctx), store.TransactionFilter{UploadID: uploadID})
	if err != nil {
		h.log.Error().Err(err).Str("upload_id", uploadID).Msg("Failed to list upload transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": toTransactionResponses(txs),
		"count":        len(txs),
	})
}

// Review handles POST /api/uploads/{id}/review. The body names the rejected
// transaction ids; everything else is kept and the upload becomes processed.
func (h *UploadsHandler) Review(w http.ResponseWriter, r *http.Request, uploadID string) {
	ctx := r.Context()

	var req struct {
		RejectedTransactionIDs []string `json:"rejected_transaction_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := h.processor.Review(ctx, middleware.UserID(ctx), uploadID, req.RejectedTransactionIDs)
	switch {
	case errors.Is(err, store.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, "Upload not found")
		return
	case errors.Is(err, ingest.ErrNotAwaitingReview):
		middleware.WriteError(w, http.StatusConflict, "Upload is not awaiting review")
		return
	case err != nil:
		h.log.Error().Err(err).Str("upload_id", uploadID).Msg("Failed to review upload")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to review upload")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "processed",
		"rejected": len(req.RejectedTransactionIDs),
	})
}
