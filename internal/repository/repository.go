// Package repository defines the persistence interfaces the service layer
// programs against. The sqlite subpackage is the only implementation; tests
// substitute in-memory mocks.
package repository

import (
	"context"

	"github.com/sakif/data-analyzer/internal/model"
)

// ListOptions carries pagination for list queries.
type ListOptions struct {
	Limit  int
	Offset int
}

// DatasetRepository stores uploaded CSV files and their metadata.
type DatasetRepository interface {
	CreateDataset(ctx context.Context, d *model.Dataset) error
	GetDatasetByID(ctx context.Context, id string) (*model.Dataset, error)
	ListDatasets(ctx context.Context, userID string, opts ListOptions) ([]model.Dataset, error)
	DeleteDataset(ctx context.Context, id string) error
}

// AnalysisRepository stores completed pipeline runs, artifact blob included.
type AnalysisRepository interface {
	CreateAnalysis(ctx context.Context, a *model.Analysis) error
	GetAnalysisByID(ctx context.Context, id string) (*model.Analysis, error)
	ListAnalyses(ctx context.Context, userID string, opts ListOptions) ([]model.Analysis, error)
	DeleteAnalysis(ctx context.Context, id string) error
}

// CredentialRepository stores one sealed API key per user. The repository
// never sees plaintext — sealing and unsealing happen in the service layer.
type CredentialRepository interface {
	SaveCredential(ctx context.Context, userID string, sealed []byte) error
	GetCredential(ctx context.Context, userID string) ([]byte, error)
	DeleteCredential(ctx context.Context, userID string) error
}

// UserRepository stores accounts created through GitHub login.
type UserRepository interface {
	Upsert(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}
