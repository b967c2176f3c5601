package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sakif/data-analyzer/internal/model"
)

// AnalysisRunner is the slice of *service.AnalysisService the handler needs.
type AnalysisRunner interface {
	Analyze(ctx context.Context, userID, datasetID, prompt string) (*model.AnalysisResult, error)
	GetAnalysis(ctx context.Context, userID, id string) (*model.Analysis, error)
	GetArtifact(ctx context.Context, userID, id string) ([]byte, error)
	ListAnalyses(ctx context.Context, userID string, limit, offset int) ([]model.Analysis, error)
	DeleteAnalysis(ctx context.Context, userID, id string) error
}

// AnalysisHandler exposes the analysis pipeline and its history over HTTP.
type AnalysisHandler struct {
	analyses AnalysisRunner
	logger   *slog.Logger
}

// NewAnalysisHandler creates an AnalysisHandler.
func NewAnalysisHandler(analyses AnalysisRunner, logger *slog.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		analyses: analyses,
		logger:   logger,
	}
}

// analyzeRequest is the JSON body of POST /api/analyses.
type analyzeRequest struct {
	DatasetID string `json:"datasetId"`
	Prompt    string `json:"prompt"`
}

// HandleAnalyze runs one analysis request end to end and returns the result.
//
// HTTP: POST /api/analyses
// REQUEST BODY: {"datasetId": "...", "prompt": "plot sales by category"}
//
// RESPONSE VARIANTS (all 200 — the pipeline ran):
//
//	{"id":"...","code":"...","image":"<base64 PNG>",...}  the code saved a plot
//	{"id":"...","code":"...","error":"Traceback...",...}  the code raised
//	{"id":"...","code":"...","stdout":"...",...}          clean run, no plot
//
// Non-200s mean the pipeline itself could not run: 400 for a bad request or
// no saved API key, 404 for an unknown dataset, 503 when the sandbox is down.
func (h *AnalysisHandler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid analyze request body", slog.String("error", err.Error()))
		http.Error(w, `{"error":"validation_error","message":"invalid JSON body"}`, http.StatusBadRequest)
		return
	}

	result, err := h.analyses.Analyze(r.Context(), uid, req.DatasetID, req.Prompt)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// HandleList returns the caller's analysis history, newest first.
//
// HTTP: GET /api/analyses?limit=20&offset=0
func (h *AnalysisHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	limit, offset := pagination(r)
	analyses, err := h.analyses.ListAnalyses(r.Context(), uid, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, analyses)
}

// HandleGet returns one stored analysis (code, error, artifact flag — the
// image itself comes from HandleImage).
//
// HTTP: GET /api/analyses/{id}
func (h *AnalysisHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	a, err := h.analyses.GetAnalysis(r.Context(), uid, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, a)
}

// HandleImage serves the PNG a stored analysis produced.
//
// HTTP: GET /api/analyses/{id}/image
//
// Served as image/png rather than JSON so the frontend can point an <img>
// tag straight at it and the browser can cache it.
func (h *AnalysisHandler) HandleImage(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	png, err := h.analyses.GetArtifact(r.Context(), uid, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=86400")
	if _, err := w.Write(png); err != nil {
		h.logger.Error("failed to write image response", slog.String("error", err.Error()))
	}
}

// HandleDelete removes one stored analysis.
//
// HTTP: DELETE /api/analyses/{id}
func (h *AnalysisHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	if err := h.analyses.DeleteAnalysis(r.Context(), uid, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
