package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/data-analyzer/internal/apperror"
	"github.com/sakif/data-analyzer/internal/dataset"
	"github.com/sakif/data-analyzer/internal/model"
	"github.com/sakif/data-analyzer/internal/repository"
)

const (
	MaxDatasetBytes   = 10 << 20 // 10MB of CSV is plenty for interactive analysis
	MaxDatasetNameLen = 255
)

// DatasetPreview is what the preview endpoint returns: the same two text
// blocks the AI prompt gets. Showing the user exactly what the model will
// see takes the mystery out of bad generations.
type DatasetPreview struct {
	Schema string `json:"schema"`
	Head   string `json:"head"`
}

// DatasetService handles CSV upload, validation, and retrieval.
type DatasetService struct {
	repo   repository.DatasetRepository
	logger *slog.Logger
}

// NewDatasetService creates a DatasetService.
func NewDatasetService(repo repository.DatasetRepository, logger *slog.Logger) *DatasetService {
	return &DatasetService{
		repo:   repo,
		logger: logger,
	}
}

// Upload validates and stores a CSV file.
//
// The file is parsed ONCE here, at the boundary: if the bytes aren't valid
// UTF-8 CSV, the upload is rejected with a validation error and nothing is
// stored. Everything downstream (previews, prompts, the sandbox) can then
// trust the stored bytes to parse.
func (s *DatasetService) Upload(ctx context.Context, userID, name string, content []byte) (*model.Dataset, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "upload.csv"
	}
	if len(name) > MaxDatasetNameLen {
		return nil, apperror.ValidationFailed("name",
			fmt.Sprintf("file name must be %d characters or less", MaxDatasetNameLen))
	}
	if len(content) == 0 {
		return nil, apperror.ValidationFailed("file", "uploaded file is empty")
	}
	if len(content) > MaxDatasetBytes {
		return nil, apperror.ValidationFailed("file",
			fmt.Sprintf("uploaded file must be %d bytes or less", MaxDatasetBytes))
	}

	parsed, err := dataset.Parse(content)
	if err != nil {
		return nil, err
	}

	d := &model.Dataset{
		UserID:  userID,
		Name:    name,
		Content: content,
		Rows:    parsed.NumRows(),
		Cols:    parsed.NumCols(),
	}

	if err := s.repo.CreateDataset(ctx, d); err != nil {
		s.logger.Error("failed to store dataset",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/dataset: storing dataset: %w", err)
	}

	s.logger.Info("dataset uploaded",
		slog.String("id", d.ID),
		slog.String("name", d.Name),
		slog.Int("rows", d.Rows),
		slog.Int("cols", d.Cols),
	)

	return d, nil
}

// GetByID retrieves a dataset after checking ownership.
func (s *DatasetService) GetByID(ctx context.Context, userID, id string) (*model.Dataset, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "dataset ID is required")
	}

	d, err := s.repo.GetDatasetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.UserID != userID {
		return nil, apperror.NotFound("dataset", id)
	}

	return d, nil
}

// Preview returns the schema summary and first rows of a dataset — the
// exact text blocks an analysis prompt for it would contain.
func (s *DatasetService) Preview(ctx context.Context, userID, id string) (*DatasetPreview, error) {
	d, err := s.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	parsed, err := dataset.Parse(d.Content)
	if err != nil {
		return nil, fmt.Errorf("service/dataset: re-parsing dataset %s: %w", id, err)
	}

	return &DatasetPreview{
		Schema: parsed.Describe(),
		Head:   parsed.Head(dataset.DefaultHeadRows),
	}, nil
}

// List retrieves the user's datasets with pagination. No CSV bytes.
func (s *DatasetService) List(ctx context.Context, userID string, limit, offset int) ([]model.Dataset, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	datasets, err := s.repo.ListDatasets(ctx, userID, repository.ListOptions{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.logger.Error("failed to list datasets", slog.String("error", err.Error()))
		return nil, fmt.Errorf("service/dataset: listing datasets: %w", err)
	}

	return datasets, nil
}

// Delete removes a dataset after checking ownership.
func (s *DatasetService) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.GetByID(ctx, userID, id); err != nil {
		return err
	}
	if err := s.repo.DeleteDataset(ctx, id); err != nil {
		return err
	}

	s.logger.Info("dataset deleted", slog.String("id", id))
	return nil
}
