package executor

import (
	"context"
	"time"
)

// ExecutionRequest carries one generated snippet and the dataset it runs
// against. The dataset travels as raw CSV bytes — the sandbox re-parses it
// with the same flags the upload parser used, so the snippet's `df` matches
// what the prompt described.
type ExecutionRequest struct {
	Code    string `json:"code"`
	Dataset []byte `json:"-"`
}

// ExecutionResult is the raw outcome of one sandboxed run.
//
// Artifact holds the bytes of the conventionally named output image if the
// snippet produced one; nil means no artifact, which is not an error. A
// non-zero ExitCode means the snippet raised — Stderr then carries the full
// formatted traceback and Artifact is never populated.
type ExecutionResult struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exitCode"`
	Duration time.Duration `json:"duration"`
	Artifact []byte        `json:"-"`
}

// Executor runs generated analysis code in an isolated environment.
type Executor interface {
	Execute(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error)
}
