// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
// In a well-structured Go web app, code is organised into three layers:
//
//   Handler (HTTP layer)    → parses requests, writes responses
//   Service (Business layer) → validates, enforces rules, orchestrates
//   Repository (Data layer) → reads/writes to the database
//
// WHY A SEPARATE SERVICE LAYER?
// Without a service layer, handlers do everything: parse HTTP, validate data,
// call the database, call the AI backend, drive the sandbox, format responses.
// This creates several problems:
//
//   1. TESTING: To test business logic, you'd need to create HTTP requests.
//      With a service layer, you test business logic with plain Go function calls.
//
//   2. REUSE: What if you need the same pipeline in a CLI tool or a background
//      job? Handlers are tied to HTTP. Services are not.
//
//   3. SEPARATION: Handlers should only know about HTTP (status codes, headers, JSON).
//      Services should only know about business rules (validation, permissions,
//      the order of pipeline steps). Neither should know about SQL or Docker details.
//
// THE DEPENDENCY CHAIN:
//   main.go creates:  DB → Repository → Service → Handler
//   At runtime:       Handler calls Service calls Repository/Generator/Executor
//
// DEPENDENCY INJECTION:
// Notice that AnalysisService takes interfaces (repository.DatasetRepository,
// CodeGenerator, executor.Executor), NOT concrete types. This is called
// "programming to an interface."
//
// Benefits:
// - TESTING: In tests, we pass mocks (see analysis_test.go)
// - FLEXIBILITY: Swap SQLite for Postgres, or Gemini for another backend,
//   by changing one line in server.go
// - DECOUPLING: The service doesn't import the sqlite or docker packages at all
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/data-analyzer/internal/apperror"
	"github.com/sakif/data-analyzer/internal/dataset"
	"github.com/sakif/data-analyzer/internal/executor"
	"github.com/sakif/data-analyzer/internal/generator"
	"github.com/sakif/data-analyzer/internal/model"
	"github.com/sakif/data-analyzer/internal/repository"
)

// Validation constants.
const (
	MaxPromptLength  = 2000
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// CodeGenerator is the slice of *generator.Generator the analysis pipeline
// needs. Declaring the interface on the CONSUMER side (here, not in the
// generator package) is the idiomatic Go move — it lets tests substitute a
// canned generator without touching the real one.
type CodeGenerator interface {
	Generate(ctx context.Context, apiKey string, in generator.Input) (string, error)
}

// CredentialOpener recovers a plaintext API key from its sealed form.
// Implemented by *auth.KeyCrypt.
type CredentialOpener interface {
	Unseal(sealed []byte) (string, error)
}

// AnalysisService runs the full pipeline:
//
//	dataset → schema summary → prompt → generated code → sandboxed run → result
//
// Each step can fail in a different way, and the service decides which
// failures are the caller's problem (validation, missing key), which are
// infrastructure trouble (sandbox down), and which are the normal "your
// analysis raised an exception" outcome that comes back as data, not error.
type AnalysisService struct {
	datasets    repository.DatasetRepository
	analyses    repository.AnalysisRepository
	credentials repository.CredentialRepository
	keys        CredentialOpener
	gen         CodeGenerator
	exec        executor.Executor
	logger      *slog.Logger
}

// NewAnalysisService creates an AnalysisService with all required
// dependencies. exec may be nil when no sandbox is available — Analyze then
// reports the sandbox as unavailable instead of crashing.
func NewAnalysisService(
	datasets repository.DatasetRepository,
	analyses repository.AnalysisRepository,
	credentials repository.CredentialRepository,
	keys CredentialOpener,
	gen CodeGenerator,
	exec executor.Executor,
	logger *slog.Logger,
) *AnalysisService {
	return &AnalysisService{
		datasets:    datasets,
		analyses:    analyses,
		credentials: credentials,
		keys:        keys,
		gen:         gen,
		exec:        exec,
		logger:      logger,
	}
}

// Analyze runs one natural-language request against a stored dataset.
//
// THE RESULT CONTRACT:
// The returned AnalysisResult carries at most one of Image or Error:
//
//   - Image set   → the code ran cleanly and saved a plot
//   - Error set   → generation failed, or the code raised (formatted traceback)
//   - neither set → the code ran cleanly and produced nothing visual;
//     Stdout may still carry printed output
//
// A Go error return means the pipeline itself could not run (unknown
// dataset, no saved API key, sandbox down) — nothing is persisted then.
// Once code generation starts, outcomes are recorded and come back as data.
func (s *AnalysisService) Analyze(ctx context.Context, userID, datasetID, prompt string) (*model.AnalysisResult, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, apperror.ValidationFailed("prompt", "analysis prompt is required")
	}
	if len(prompt) > MaxPromptLength {
		return nil, apperror.ValidationFailed("prompt",
			fmt.Sprintf("analysis prompt must be %d characters or less", MaxPromptLength))
	}
	if strings.TrimSpace(datasetID) == "" {
		return nil, apperror.ValidationFailed("datasetId", "dataset ID is required")
	}

	// === LOAD THE DATASET ===
	ds, err := s.datasets.GetDatasetByID(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	// Ownership check returns NotFound, not Forbidden — a 403 would confirm
	// the ID exists to someone who shouldn't know that.
	if ds.UserID != userID {
		return nil, apperror.NotFound("dataset", datasetID)
	}

	// Re-parse the stored bytes. The upload already validated them, so a
	// failure here means the stored blob is corrupt — an internal error.
	parsed, err := dataset.Parse(ds.Content)
	if err != nil {
		return nil, fmt.Errorf("service/analysis: re-parsing dataset %s: %w", datasetID, err)
	}

	// === RECOVER THE API KEY ===
	apiKey, err := s.loadAPIKey(ctx, userID)
	if err != nil {
		return nil, err
	}

	// === GENERATE CODE ===
	// Generation failures come back to the user as the error variant of the
	// result, not as a pipeline error: "the model couldn't produce code for
	// that" is an outcome of the analysis, same as a traceback.
	code, err := s.gen.Generate(ctx, apiKey, generator.Input{
		Prompt: prompt,
		Schema: parsed.Describe(),
		Head:   parsed.Head(dataset.DefaultHeadRows),
	})
	if err != nil {
		s.logger.Warn("code generation failed",
			slog.String("datasetID", datasetID),
			slog.String("error", err.Error()),
		)
		return s.record(ctx, &model.Analysis{
			UserID:    userID,
			DatasetID: datasetID,
			Prompt:    prompt,
			Error:     fmt.Sprintf("generating analysis code: %v", err),
		}, 0)
	}

	// === EXECUTE IN THE SANDBOX ===
	if s.exec == nil {
		return nil, apperror.Unavailable("execution sandbox is not available")
	}

	run, err := s.exec.Execute(ctx, executor.ExecutionRequest{
		Code:    code,
		Dataset: ds.Content,
	})
	if err != nil {
		// The sandbox itself failed (container wouldn't start, copy failed) —
		// infrastructure trouble, not a property of the user's analysis.
		s.logger.Error("sandbox execution failed",
			slog.String("datasetID", datasetID),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Unavailable("execution sandbox failed; try again")
	}

	record := &model.Analysis{
		UserID:    userID,
		DatasetID: datasetID,
		Prompt:    prompt,
		Code:      code,
	}

	// === MAP THE RUN TO EXACTLY ONE VARIANT ===
	switch {
	case run.ExitCode != 0:
		record.Error = runError(run)
	case len(run.Artifact) > 0:
		record.Artifact = run.Artifact
	}

	result, err := s.record(ctx, record, run.Duration)
	if err != nil {
		return nil, err
	}
	result.Stdout = run.Stdout

	s.logger.Info("analysis completed",
		slog.String("id", result.ID),
		slog.String("datasetID", datasetID),
		slog.Bool("hasImage", len(result.Image) > 0),
		slog.Bool("hasError", result.Error != ""),
		slog.Duration("duration", run.Duration),
	)

	return result, nil
}

// loadAPIKey fetches and unseals the user's stored credential. A missing key
// is the user's problem to fix, so it surfaces as a validation error rather
// than NotFound — the handler turns it into a 400 with an actionable message.
func (s *AnalysisService) loadAPIKey(ctx context.Context, userID string) (string, error) {
	sealed, err := s.credentials.GetCredential(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return "", apperror.ValidationFailed("apiKey",
				"no API key saved; add one before running an analysis")
		}
		return "", fmt.Errorf("service/analysis: loading credential: %w", err)
	}

	apiKey, err := s.keys.Unseal(sealed)
	if err != nil {
		// Unseal fails if the server secret changed since the key was saved.
		return "", fmt.Errorf("service/analysis: unsealing credential: %w", err)
	}

	return apiKey, nil
}

// record persists one pipeline outcome and shapes it into the result the
// handler returns.
func (s *AnalysisService) record(ctx context.Context, a *model.Analysis, duration time.Duration) (*model.AnalysisResult, error) {
	if err := s.analyses.CreateAnalysis(ctx, a); err != nil {
		s.logger.Error("failed to persist analysis",
			slog.String("datasetID", a.DatasetID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/analysis: persisting analysis: %w", err)
	}

	return &model.AnalysisResult{
		ID:       a.ID,
		Code:     a.Code,
		Image:    a.Artifact,
		Error:    a.Error,
		Duration: duration,
	}, nil
}

// runError extracts the user-facing failure text from a non-zero-exit run.
// The sandbox prints the formatted traceback on stderr; if that's somehow
// empty, fall back to something that at least names the exit code.
func runError(run *executor.ExecutionResult) string {
	if msg := strings.TrimSpace(run.Stderr); msg != "" {
		return msg
	}
	return fmt.Sprintf("analysis code exited with status %d", run.ExitCode)
}

// GetAnalysis returns one stored run, artifact included, after checking
// ownership.
func (s *AnalysisService) GetAnalysis(ctx context.Context, userID, id string) (*model.Analysis, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "analysis ID is required")
	}

	a, err := s.analyses.GetAnalysisByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.UserID != userID {
		return nil, apperror.NotFound("analysis", id)
	}

	return a, nil
}

// GetArtifact returns the PNG bytes of a stored run's image. NotFound both
// when the run doesn't exist and when it produced no image — to the caller
// of the download endpoint those are the same situation.
func (s *AnalysisService) GetArtifact(ctx context.Context, userID, id string) ([]byte, error) {
	a, err := s.GetAnalysis(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if len(a.Artifact) == 0 {
		return nil, apperror.NotFound("artifact for analysis", id)
	}
	return a.Artifact, nil
}

// ListAnalyses returns the user's run history with pagination.
func (s *AnalysisService) ListAnalyses(ctx context.Context, userID string, limit, offset int) ([]model.Analysis, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	analyses, err := s.analyses.ListAnalyses(ctx, userID, repository.ListOptions{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.logger.Error("failed to list analyses", slog.String("error", err.Error()))
		return nil, fmt.Errorf("service/analysis: listing analyses: %w", err)
	}

	return analyses, nil
}

// DeleteAnalysis removes one stored run after checking ownership.
func (s *AnalysisService) DeleteAnalysis(ctx context.Context, userID, id string) error {
	if _, err := s.GetAnalysis(ctx, userID, id); err != nil {
		return err
	}
	if err := s.analyses.DeleteAnalysis(ctx, id); err != nil {
		return err
	}

	s.logger.Info("analysis deleted", slog.String("id", id))
	return nil
}
