package model

import "time"

// Analysis is one persisted run of the pipeline: the user's request, the
// code the model generated for it, and what happened when that code ran.
//
// Error and Artifact are mutually exclusive — an execution either raised
// (Error holds the formatted traceback) or it didn't (Artifact holds the
// produced image, if any). Both empty means the code ran fine and produced
// no visual output.
type Analysis struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId,omitempty"`
	DatasetID   string    `json:"datasetId"`
	Prompt      string    `json:"prompt"`
	Code        string    `json:"code"`
	Error       string    `json:"error,omitempty"`
	Artifact    []byte    `json:"-"` // PNG bytes; served via the image endpoint
	HasArtifact bool      `json:"hasArtifact"`
	CreatedAt   time.Time `json:"createdAt"`
}

// AnalysisResult is the outcome of a single pipeline invocation, returned
// to the caller of the analyze endpoint. Exactly one of Image or Error is
// populated per invocation — or neither, which means "ran fine, nothing
// visual to show" and is not a failure.
//
// Image marshals as base64 (encoding/json's []byte behaviour), which is how
// the frontend receives the PNG inline. The stored copy backs the download
// endpoint.
type AnalysisResult struct {
	ID       string        `json:"id"`
	Code     string        `json:"code"`
	Image    []byte        `json:"image,omitempty"`
	Error    string        `json:"error,omitempty"`
	Stdout   string        `json:"stdout,omitempty"`
	Duration time.Duration `json:"duration"`
}
