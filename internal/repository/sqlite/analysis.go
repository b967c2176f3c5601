package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/data-analyzer/internal/apperror"
	"github.com/sakif/data-analyzer/internal/model"
	"github.com/sakif/data-analyzer/internal/repository"
)

// Compile-time check that *DB implements repository.AnalysisRepository.
var _ repository.AnalysisRepository = (*DB)(nil)

// CreateAnalysis persists a completed pipeline run.
func (db *DB) CreateAnalysis(ctx context.Context, a *model.Analysis) error {
	a.ID = xid.New().String()
	a.CreatedAt = time.Now()

	// Artifact is stored as NULL rather than an empty blob when absent, so
	// HasArtifact can be derived from the column without loading the bytes.
	var artifact any
	if len(a.Artifact) > 0 {
		artifact = a.Artifact
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO analyses (id, user_id, dataset_id, prompt, code, error, artifact, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID,
		a.UserID,
		a.DatasetID,
		a.Prompt,
		a.Code,
		a.Error,
		artifact,
		a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating analysis: %w", err)
	}

	a.HasArtifact = len(a.Artifact) > 0
	return nil
}

// GetAnalysisByID retrieves one run, artifact bytes included.
func (db *DB) GetAnalysisByID(ctx context.Context, id string) (*model.Analysis, error) {
	var a model.Analysis

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, dataset_id, prompt, code, error, artifact, created_at
		 FROM analyses
		 WHERE id = ?`,
		id,
	).Scan(
		&a.ID,
		&a.UserID,
		&a.DatasetID,
		&a.Prompt,
		&a.Code,
		&a.Error,
		&a.Artifact,
		&a.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("analysis", id)
		}
		return nil, fmt.Errorf("sqlite: getting analysis %s: %w", id, err)
	}

	a.HasArtifact = len(a.Artifact) > 0
	return &a, nil
}

// ListAnalyses returns a user's run history, newest first. Like dataset
// listings it skips the blob; only the presence flag comes back.
func (db *DB) ListAnalyses(ctx context.Context, userID string, opts repository.ListOptions) ([]model.Analysis, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, dataset_id, prompt, code, error,
		        artifact IS NOT NULL, created_at
		 FROM analyses
		 WHERE user_id = ?
		 ORDER BY created_at DESC
		 LIMIT ? OFFSET ?`,
		userID,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing analyses: %w", err)
	}
	defer rows.Close()

	analyses := make([]model.Analysis, 0, limit)
	for rows.Next() {
		var a model.Analysis
		if err := rows.Scan(&a.ID, &a.UserID, &a.DatasetID, &a.Prompt, &a.Code, &a.Error, &a.HasArtifact, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning analysis row: %w", err)
		}
		analyses = append(analyses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating analyses: %w", err)
	}

	return analyses, nil
}

// DeleteAnalysis removes one run by ID.
func (db *DB) DeleteAnalysis(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM analyses WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting analysis %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("analysis", id)
	}

	return nil
}
