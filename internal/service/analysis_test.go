package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"log/slog"
	"os"

	"github.com/sakif/data-analyzer/internal/apperror"
	"github.com/sakif/data-analyzer/internal/executor"
	"github.com/sakif/data-analyzer/internal/generator"
	"github.com/sakif/data-analyzer/internal/model"
	"github.com/sakif/data-analyzer/internal/repository"
)

// =========================================================================
// MOCKS
// =========================================================================
//
// WHAT IS A MOCK?
// A mock is a fake implementation of an interface used in tests.
// Instead of talking to a real database, Gemini, or Docker, it returns
// canned answers from memory.
//
// WHY MOCK?
// 1. SPEED: No network, no containers, tests run in microseconds
// 2. ISOLATION: Tests only test the pipeline logic, not the backends
// 3. CONTROL: You can simulate every outcome (model down, code raised,
//    sandbox crashed) that would be hard to trigger for real
//
// In production code, you'd often use `github.com/stretchr/testify/mock`
// for more sophisticated mocks. For a pipeline with this many seams,
// hand-written fakes are clearer.

type mockDatasetRepo struct {
	datasets map[string]*model.Dataset
	nextID   int
}

func newMockDatasetRepo() *mockDatasetRepo {
	return &mockDatasetRepo{datasets: make(map[string]*model.Dataset)}
}

func (m *mockDatasetRepo) CreateDataset(_ context.Context, d *model.Dataset) error {
	m.nextID++
	d.ID = fmt.Sprintf("ds-%d", m.nextID)
	d.CreatedAt = time.Now()
	stored := *d
	m.datasets[d.ID] = &stored
	return nil
}

func (m *mockDatasetRepo) GetDatasetByID(_ context.Context, id string) (*model.Dataset, error) {
	d, ok := m.datasets[id]
	if !ok {
		return nil, apperror.NotFound("dataset", id)
	}
	result := *d
	return &result, nil
}

func (m *mockDatasetRepo) ListDatasets(_ context.Context, userID string, opts repository.ListOptions) ([]model.Dataset, error) {
	result := make([]model.Dataset, 0, len(m.datasets))
	for _, d := range m.datasets {
		if d.UserID == userID {
			result = append(result, *d)
		}
	}
	return result, nil
}

func (m *mockDatasetRepo) DeleteDataset(_ context.Context, id string) error {
	if _, ok := m.datasets[id]; !ok {
		return apperror.NotFound("dataset", id)
	}
	delete(m.datasets, id)
	return nil
}

type mockAnalysisRepo struct {
	analyses  map[string]*model.Analysis
	nextID    int
	createErr error
}

func newMockAnalysisRepo() *mockAnalysisRepo {
	return &mockAnalysisRepo{analyses: make(map[string]*model.Analysis)}
}

func (m *mockAnalysisRepo) CreateAnalysis(_ context.Context, a *model.Analysis) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.nextID++
	a.ID = fmt.Sprintf("an-%d", m.nextID)
	a.CreatedAt = time.Now()
	a.HasArtifact = len(a.Artifact) > 0
	stored := *a
	m.analyses[a.ID] = &stored
	return nil
}

func (m *mockAnalysisRepo) GetAnalysisByID(_ context.Context, id string) (*model.Analysis, error) {
	a, ok := m.analyses[id]
	if !ok {
		return nil, apperror.NotFound("analysis", id)
	}
	result := *a
	return &result, nil
}

func (m *mockAnalysisRepo) ListAnalyses(_ context.Context, userID string, opts repository.ListOptions) ([]model.Analysis, error) {
	result := make([]model.Analysis, 0, len(m.analyses))
	for _, a := range m.analyses {
		if a.UserID == userID {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (m *mockAnalysisRepo) DeleteAnalysis(_ context.Context, id string) error {
	if _, ok := m.analyses[id]; !ok {
		return apperror.NotFound("analysis", id)
	}
	delete(m.analyses, id)
	return nil
}

type mockCredentialRepo struct {
	sealed map[string][]byte
}

func newMockCredentialRepo() *mockCredentialRepo {
	return &mockCredentialRepo{sealed: make(map[string][]byte)}
}

func (m *mockCredentialRepo) SaveCredential(_ context.Context, userID string, sealed []byte) error {
	m.sealed[userID] = sealed
	return nil
}

func (m *mockCredentialRepo) GetCredential(_ context.Context, userID string) ([]byte, error) {
	s, ok := m.sealed[userID]
	if !ok {
		return nil, apperror.NotFound("credential", userID)
	}
	return s, nil
}

func (m *mockCredentialRepo) DeleteCredential(_ context.Context, userID string) error {
	if _, ok := m.sealed[userID]; !ok {
		return apperror.NotFound("credential", userID)
	}
	delete(m.sealed, userID)
	return nil
}

// fakeOpener "unseals" by stripping a prefix — enough to prove the service
// passes the unsealed value along, without real crypto in the way.
type fakeOpener struct{}

func (fakeOpener) Unseal(sealed []byte) (string, error) {
	return strings.TrimPrefix(string(sealed), "sealed:"), nil
}

// fakeGenerator returns canned code, and records the input it was given so
// tests can assert the prompt pieces arrived.
type fakeGenerator struct {
	code    string
	err     error
	lastKey string
	lastIn  generator.Input
}

func (f *fakeGenerator) Generate(_ context.Context, apiKey string, in generator.Input) (string, error) {
	f.lastKey = apiKey
	f.lastIn = in
	if f.err != nil {
		return "", f.err
	}
	return f.code, nil
}

// fakeExecutor returns a canned run outcome.
type fakeExecutor struct {
	result  *executor.ExecutionResult
	err     error
	lastReq executor.ExecutionRequest
}

func (f *fakeExecutor) Execute(_ context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// =========================================================================
// TEST HELPERS
// =========================================================================

const salesCSV = "category,sales\nfruit,120\nveg,85\nfruit,42\n"

type analysisFixture struct {
	svc       *AnalysisService
	datasets  *mockDatasetRepo
	analyses  *mockAnalysisRepo
	creds     *mockCredentialRepo
	gen       *fakeGenerator
	exec      *fakeExecutor
	datasetID string
}

// newAnalysisFixture wires an AnalysisService against mocks, with one
// dataset uploaded for "local" and an API key on file.
func newAnalysisFixture(t *testing.T) *analysisFixture {
	t.Helper()

	f := &analysisFixture{
		datasets: newMockDatasetRepo(),
		analyses: newMockAnalysisRepo(),
		creds:    newMockCredentialRepo(),
		gen:      &fakeGenerator{code: "df.groupby('category').sum()"},
		exec:     &fakeExecutor{result: &executor.ExecutionResult{ExitCode: 0}},
	}

	d := &model.Dataset{UserID: "local", Name: "sales.csv", Content: []byte(salesCSV), Rows: 3, Cols: 2}
	if err := f.datasets.CreateDataset(context.Background(), d); err != nil {
		t.Fatalf("setup dataset: %v", err)
	}
	f.datasetID = d.ID
	f.creds.sealed["local"] = []byte("sealed:test-api-key")

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	f.svc = NewAnalysisService(f.datasets, f.analyses, f.creds, fakeOpener{}, f.gen, f.exec, logger)
	return f
}

// =========================================================================
// Analyze TESTS — one per outcome variant
// =========================================================================

func TestAnalyze_ArtifactBecomesImageVariant(t *testing.T) {
	f := newAnalysisFixture(t)
	png := []byte("\x89PNG fake plot")
	f.exec.result = &executor.ExecutionResult{ExitCode: 0, Artifact: png, Duration: 2 * time.Second}

	result, err := f.svc.Analyze(context.Background(), "local", f.datasetID, "plot sales by category")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if string(result.Image) != string(png) {
		t.Error("result.Image should carry the artifact bytes")
	}
	if result.Error != "" {
		t.Errorf("result.Error = %q, want empty when an image was produced", result.Error)
	}
	if result.Code != f.gen.code {
		t.Errorf("result.Code = %q, want the generated code", result.Code)
	}
}

func TestAnalyze_RaiseBecomesErrorVariant(t *testing.T) {
	f := newAnalysisFixture(t)
	trace := "Traceback (most recent call last):\n  ...\nValueError: bad column"
	f.exec.result = &executor.ExecutionResult{ExitCode: 1, Stderr: trace}

	result, err := f.svc.Analyze(context.Background(), "local", f.datasetID, "plot the missing column")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if !strings.Contains(result.Error, "ValueError: bad column") {
		t.Errorf("result.Error = %q, want the traceback", result.Error)
	}
	if len(result.Image) != 0 {
		t.Error("result.Image must be empty when the code raised")
	}
}

func TestAnalyze_CleanRunWithoutArtifactIsEmptyVariant(t *testing.T) {
	f := newAnalysisFixture(t)
	// "sum sales by category" prints a table, saves nothing — a normal,
	// successful outcome.
	f.exec.result = &executor.ExecutionResult{
		ExitCode: 0,
		Stdout:   "category\nfruit    162\nveg       85\n",
	}

	result, err := f.svc.Analyze(context.Background(), "local", f.datasetID, "sum sales by category")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if len(result.Image) != 0 {
		t.Error("result.Image must be empty for a run with no artifact")
	}
	if result.Error != "" {
		t.Errorf("result.Error = %q, want empty for a clean run", result.Error)
	}
	if !strings.Contains(result.Stdout, "fruit") {
		t.Errorf("result.Stdout = %q, want the printed table", result.Stdout)
	}
}

func TestAnalyze_GeneratorFailureBecomesErrorVariant(t *testing.T) {
	f := newAnalysisFixture(t)
	f.gen.err = errors.New("model returned an empty completion")

	result, err := f.svc.Analyze(context.Background(), "local", f.datasetID, "do something")
	if err != nil {
		t.Fatalf("Analyze() error = %v — generation failure is a result, not a pipeline error", err)
	}

	if result.Error == "" {
		t.Fatal("result.Error should describe the generation failure")
	}
	if len(result.Image) != 0 || result.Code != "" {
		t.Error("a failed generation must produce no image and no code")
	}
	// And it is still recorded in history.
	if len(f.analyses.analyses) != 1 {
		t.Errorf("stored %d analyses, want 1", len(f.analyses.analyses))
	}
}

// =========================================================================
// Analyze TESTS — pipeline wiring
// =========================================================================

func TestAnalyze_PromptReceivesSchemaAndHead(t *testing.T) {
	f := newAnalysisFixture(t)

	if _, err := f.svc.Analyze(context.Background(), "local", f.datasetID, "sum sales by category"); err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if f.gen.lastKey != "test-api-key" {
		t.Errorf("generator received key %q, want the unsealed key", f.gen.lastKey)
	}
	if f.gen.lastIn.Prompt != "sum sales by category" {
		t.Errorf("generator received prompt %q", f.gen.lastIn.Prompt)
	}
	if !strings.Contains(f.gen.lastIn.Schema, "category") || !strings.Contains(f.gen.lastIn.Schema, "sales") {
		t.Errorf("schema block missing column names:\n%s", f.gen.lastIn.Schema)
	}
	if !strings.Contains(f.gen.lastIn.Head, "fruit") {
		t.Errorf("head block missing data rows:\n%s", f.gen.lastIn.Head)
	}
}

func TestAnalyze_SandboxReceivesGeneratedCodeAndRawCSV(t *testing.T) {
	f := newAnalysisFixture(t)

	if _, err := f.svc.Analyze(context.Background(), "local", f.datasetID, "sum sales"); err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if f.exec.lastReq.Code != f.gen.code {
		t.Errorf("sandbox received code %q, want the generated code", f.exec.lastReq.Code)
	}
	if string(f.exec.lastReq.Dataset) != salesCSV {
		t.Error("sandbox must receive the exact uploaded bytes")
	}
}

func TestAnalyze_PersistsOutcome(t *testing.T) {
	f := newAnalysisFixture(t)
	f.exec.result = &executor.ExecutionResult{ExitCode: 0, Artifact: []byte("png")}

	result, err := f.svc.Analyze(context.Background(), "local", f.datasetID, "plot sales")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	stored, err := f.analyses.GetAnalysisByID(context.Background(), result.ID)
	if err != nil {
		t.Fatalf("stored analysis not found: %v", err)
	}
	if stored.Prompt != "plot sales" {
		t.Errorf("stored.Prompt = %q", stored.Prompt)
	}
	if !stored.HasArtifact {
		t.Error("stored analysis should flag its artifact")
	}
}

// =========================================================================
// Analyze TESTS — failure modes that ARE pipeline errors
// =========================================================================

func TestAnalyze_EmptyPrompt(t *testing.T) {
	f := newAnalysisFixture(t)

	_, err := f.svc.Analyze(context.Background(), "local", f.datasetID, "   ")
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Analyze() error = %v, want validation error", err)
	}
}

func TestAnalyze_UnknownDataset(t *testing.T) {
	f := newAnalysisFixture(t)

	_, err := f.svc.Analyze(context.Background(), "local", "nope", "sum sales")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Analyze() error = %v, want ErrNotFound", err)
	}
}

func TestAnalyze_OtherUsersDatasetLooksNotFound(t *testing.T) {
	f := newAnalysisFixture(t)

	_, err := f.svc.Analyze(context.Background(), "intruder", f.datasetID, "sum sales")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Analyze() error = %v, want ErrNotFound (not Forbidden)", err)
	}
}

func TestAnalyze_MissingAPIKey(t *testing.T) {
	f := newAnalysisFixture(t)
	delete(f.creds.sealed, "local")

	_, err := f.svc.Analyze(context.Background(), "local", f.datasetID, "sum sales")
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Analyze() error = %v, want validation error telling the user to add a key", err)
	}
	// Nothing should be recorded when the pipeline never started.
	if len(f.analyses.analyses) != 0 {
		t.Errorf("stored %d analyses, want 0", len(f.analyses.analyses))
	}
}

func TestAnalyze_NoSandboxConfigured(t *testing.T) {
	f := newAnalysisFixture(t)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	f.svc = NewAnalysisService(f.datasets, f.analyses, f.creds, fakeOpener{}, f.gen, nil, logger)

	_, err := f.svc.Analyze(context.Background(), "local", f.datasetID, "sum sales")
	if !errors.Is(err, apperror.ErrUnavailable) {
		t.Errorf("Analyze() error = %v, want ErrUnavailable", err)
	}
}

func TestAnalyze_SandboxCrashIsUnavailable(t *testing.T) {
	f := newAnalysisFixture(t)
	f.exec.err = errors.New("container would not start")

	_, err := f.svc.Analyze(context.Background(), "local", f.datasetID, "sum sales")
	if !errors.Is(err, apperror.ErrUnavailable) {
		t.Errorf("Analyze() error = %v, want ErrUnavailable", err)
	}
}

// =========================================================================
// GetArtifact / history TESTS
// =========================================================================

func TestGetArtifact(t *testing.T) {
	f := newAnalysisFixture(t)
	f.exec.result = &executor.ExecutionResult{ExitCode: 0, Artifact: []byte("png-bytes")}

	result, err := f.svc.Analyze(context.Background(), "local", f.datasetID, "plot sales")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	png, err := f.svc.GetArtifact(context.Background(), "local", result.ID)
	if err != nil {
		t.Fatalf("GetArtifact() error = %v", err)
	}
	if string(png) != "png-bytes" {
		t.Errorf("GetArtifact() = %q", png)
	}
}

func TestGetArtifact_NoImage(t *testing.T) {
	f := newAnalysisFixture(t)

	result, err := f.svc.Analyze(context.Background(), "local", f.datasetID, "sum sales")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	_, err = f.svc.GetArtifact(context.Background(), "local", result.ID)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetArtifact() error = %v, want ErrNotFound for an imageless run", err)
	}
}

func TestGetAnalysis_OwnershipChecked(t *testing.T) {
	f := newAnalysisFixture(t)

	result, err := f.svc.Analyze(context.Background(), "local", f.datasetID, "sum sales")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	_, err = f.svc.GetAnalysis(context.Background(), "intruder", result.ID)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetAnalysis() error = %v, want ErrNotFound for another user", err)
	}
}

func TestDeleteAnalysis(t *testing.T) {
	f := newAnalysisFixture(t)

	result, err := f.svc.Analyze(context.Background(), "local", f.datasetID, "sum sales")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if err := f.svc.DeleteAnalysis(context.Background(), "local", result.ID); err != nil {
		t.Fatalf("DeleteAnalysis() error = %v", err)
	}
	if _, err := f.svc.GetAnalysis(context.Background(), "local", result.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetAnalysis() after delete: error = %v, want ErrNotFound", err)
	}
}
