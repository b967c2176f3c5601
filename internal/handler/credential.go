package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

// CredentialManager is the slice of *service.CredentialService the handler
// needs.
type CredentialManager interface {
	Save(ctx context.Context, userID, apiKey string) error
	Status(ctx context.Context, userID string) (bool, error)
	Delete(ctx context.Context, userID string) error
}

// CredentialHandler manages the caller's AI API key.
type CredentialHandler struct {
	credentials CredentialManager
	logger      *slog.Logger
}

// NewCredentialHandler creates a CredentialHandler.
func NewCredentialHandler(credentials CredentialManager, logger *slog.Logger) *CredentialHandler {
	return &CredentialHandler{
		credentials: credentials,
		logger:      logger,
	}
}

// credentialRequest is the JSON body of PUT /api/credential.
type credentialRequest struct {
	APIKey string `json:"apiKey"`
}

// credentialStatus is the JSON body of GET /api/credential. The key itself
// is never echoed back — only whether one is on file.
type credentialStatus struct {
	Configured bool `json:"configured"`
}

// HandleSave validates and stores the caller's API key.
//
// HTTP: PUT /api/credential
// REQUEST BODY: {"apiKey": "AIzaSy..."}
//
// PUT, not POST: a user has exactly one key, and saving again replaces it —
// the definition of an idempotent PUT.
func (h *CredentialHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var req credentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid credential request body", slog.String("error", err.Error()))
		http.Error(w, `{"error":"validation_error","message":"invalid JSON body"}`, http.StatusBadRequest)
		return
	}

	if err := h.credentials.Save(r.Context(), uid, req.APIKey); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, credentialStatus{Configured: true})
}

// HandleStatus reports whether the caller has a key on file.
//
// HTTP: GET /api/credential
func (h *CredentialHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	configured, err := h.credentials.Status(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, credentialStatus{Configured: configured})
}

// HandleDelete removes the caller's stored key.
//
// HTTP: DELETE /api/credential
func (h *CredentialHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	if err := h.credentials.Delete(r.Context(), uid); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
