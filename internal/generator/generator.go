// Package generator turns a natural-language analysis request into a Python
// snippet by calling the Gemini completion API.
//
// Each call builds one self-contained prompt (no multi-turn context), takes
// the primary candidate's text, and strips markdown fencing. Every request
// is a single independent exchange wrapped in an explicit deadline — a slow
// or hanging endpoint fails the request instead of blocking the service.
//
// The client is constructed per call because the API key is per user, not
// per process: the service stores one sealed key per account and hands it
// to Generate for the duration of a single request.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"
)

// ErrCredentialMissing is returned when Generate is called without an API
// key. Checked before any network activity so the caller can surface it as
// a validation problem rather than an endpoint failure.
var ErrCredentialMissing = errors.New("generator: API key is missing")

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.5-pro"

// DefaultTimeout bounds one completion call end to end.
const DefaultTimeout = 90 * time.Second

// Generator holds the per-process generation settings. Safe for concurrent
// use — all per-request state lives on the stack.
type Generator struct {
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a Generator. Empty model or non-positive timeout fall back
// to the defaults.
func New(model string, timeout time.Duration, logger *slog.Logger) *Generator {
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Generator{
		model:   model,
		timeout: timeout,
		logger:  logger,
	}
}

// Model returns the configured Gemini model name.
func (g *Generator) Model() string {
	return g.model
}

// Generate produces an executable Python snippet for the given input.
//
// Failure modes — missing key, client configuration, the completion call
// itself, an empty response — all come back as errors; the analysis service
// converts them into the error variant of the result, so the user sees one
// readable message regardless of which step failed.
func (g *Generator) Generate(ctx context.Context, apiKey string, in Input) (string, error) {
	if strings.TrimSpace(apiKey) == "" {
		return "", ErrCredentialMissing
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", fmt.Errorf("generator: configuring AI backend: %w", err)
	}

	prompt := BuildPrompt(in)

	g.logger.Debug("sending prompt to AI model",
		slog.String("model", g.model),
		slog.Int("promptBytes", len(prompt)),
	)

	resp, err := client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generator: calling AI model: %w", err)
	}

	raw := resp.Text()
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("generator: AI model returned an empty completion")
	}

	code := StripFences(raw)

	g.logger.Info("generated analysis code",
		slog.String("model", g.model),
		slog.Int("codeBytes", len(code)),
	)

	return code, nil
}

// ValidateKey checks a candidate API key with one lightweight model-listing
// call. Any failure — bad key, network trouble, timeout — counts as invalid.
// This is a liveness check only, not an authorization or quota check.
func (g *Generator) ValidateKey(ctx context.Context, apiKey string) bool {
	if strings.TrimSpace(apiKey) == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return false
	}

	if _, err := client.Models.List(ctx, &genai.ListModelsConfig{}); err != nil {
		g.logger.Debug("API key validation failed", slog.String("error", err.Error()))
		return false
	}

	return true
}
