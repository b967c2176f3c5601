// Package handler contains the HTTP layer: parsing requests, calling
// services, writing responses. No business rules live here.
package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/data-analyzer/internal/auth"
	"github.com/sakif/data-analyzer/internal/model"
	"github.com/sakif/data-analyzer/internal/service"
)

// DatasetStore is the slice of *service.DatasetService the handler needs.
// Consumer-side interface, same pattern as the service layer — tests swap
// in a mock without touching the real service.
type DatasetStore interface {
	Upload(ctx context.Context, userID, name string, content []byte) (*model.Dataset, error)
	GetByID(ctx context.Context, userID, id string) (*model.Dataset, error)
	Preview(ctx context.Context, userID, id string) (*service.DatasetPreview, error)
	List(ctx context.Context, userID string, limit, offset int) ([]model.Dataset, error)
	Delete(ctx context.Context, userID, id string) error
}

// DatasetHandler manages CSV upload and retrieval endpoints.
type DatasetHandler struct {
	datasets DatasetStore
	logger   *slog.Logger
}

// NewDatasetHandler creates a DatasetHandler.
func NewDatasetHandler(datasets DatasetStore, logger *slog.Logger) *DatasetHandler {
	return &DatasetHandler{
		datasets: datasets,
		logger:   logger,
	}
}

// userID reads the authenticated identity the auth middleware stored in the
// context. Routes using these handlers are always behind RequireAuth or
// LocalUser, so a miss means broken wiring, not a user mistake.
func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized","message":"valid authentication required"}`, http.StatusUnauthorized)
		return "", false
	}
	return id, true
}

// HandleUpload accepts a CSV file as multipart form data.
//
// HTTP: POST /api/datasets
// FORM FIELD: "file" — the CSV upload
//
// MULTIPART vs JSON:
// File uploads use multipart/form-data, not JSON — browsers produce it
// natively from <input type="file">, and it avoids base64-inflating the
// payload by a third.
func (h *DatasetHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	// Cap the whole request body before parsing. The service enforces its
	// own limit on the file; this guards the form parsing itself.
	r.Body = http.MaxBytesReader(w, r.Body, service.MaxDatasetBytes+1024)

	file, header, err := r.FormFile("file")
	if err != nil {
		h.logger.Warn("invalid upload request", slog.String("error", err.Error()))
		http.Error(w, `{"error":"validation_error","message":"multipart field 'file' is required"}`, http.StatusBadRequest)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		h.logger.Warn("failed to read upload", slog.String("error", err.Error()))
		http.Error(w, `{"error":"validation_error","message":"could not read uploaded file"}`, http.StatusBadRequest)
		return
	}

	d, err := h.datasets.Upload(r.Context(), uid, header.Filename, content)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, d)
}

// HandleList returns the caller's datasets (metadata only).
//
// HTTP: GET /api/datasets?limit=20&offset=0
func (h *DatasetHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	limit, offset := pagination(r)
	datasets, err := h.datasets.List(r.Context(), uid, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, datasets)
}

// HandleGet returns one dataset's metadata.
//
// HTTP: GET /api/datasets/{id}
func (h *DatasetHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	d, err := h.datasets.GetByID(r.Context(), uid, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, d)
}

// HandlePreview returns the schema summary and first rows of a dataset —
// the same text an analysis prompt for it will contain.
//
// HTTP: GET /api/datasets/{id}/preview
func (h *DatasetHandler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	preview, err := h.datasets.Preview(r.Context(), uid, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, preview)
}

// HandleDelete removes a dataset.
//
// HTTP: DELETE /api/datasets/{id}
func (h *DatasetHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	if err := h.datasets.Delete(r.Context(), uid, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// pagination parses ?limit= and ?offset= with zero values on absence or
// garbage — the service clamps them to sane ranges either way.
func pagination(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	return limit, offset
}
