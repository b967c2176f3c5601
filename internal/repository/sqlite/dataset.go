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

// Compile-time check that *DB implements repository.DatasetRepository.
var _ repository.DatasetRepository = (*DB)(nil)

// CreateDataset inserts an uploaded CSV. The ID and timestamp are generated
// here and written back through the pointer, so the caller gets the
// canonical record.
func (db *DB) CreateDataset(ctx context.Context, d *model.Dataset) error {
	d.ID = xid.New().String()
	d.CreatedAt = time.Now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO datasets (id, user_id, name, content, rows, cols, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID,
		d.UserID,
		d.Name,
		d.Content,
		d.Rows,
		d.Cols,
		d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating dataset: %w", err)
	}

	return nil
}

// GetDatasetByID retrieves a dataset, raw CSV bytes included.
// Returns apperror.ErrNotFound if no dataset exists with that ID.
func (db *DB) GetDatasetByID(ctx context.Context, id string) (*model.Dataset, error) {
	var d model.Dataset

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, name, content, rows, cols, created_at
		 FROM datasets
		 WHERE id = ?`,
		id,
	).Scan(
		&d.ID,
		&d.UserID,
		&d.Name,
		&d.Content,
		&d.Rows,
		&d.Cols,
		&d.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("dataset", id)
		}
		return nil, fmt.Errorf("sqlite: getting dataset %s: %w", id, err)
	}

	return &d, nil
}

// ListDatasets returns a user's datasets, newest first, without the CSV
// blob — listings are metadata only, the bytes come via GetDatasetByID.
func (db *DB) ListDatasets(ctx context.Context, userID string, opts repository.ListOptions) ([]model.Dataset, error) {
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
		`SELECT id, user_id, name, rows, cols, created_at
		 FROM datasets
		 WHERE user_id = ?
		 ORDER BY created_at DESC
		 LIMIT ? OFFSET ?`,
		userID,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing datasets: %w", err)
	}
	defer rows.Close()

	datasets := make([]model.Dataset, 0, limit)
	for rows.Next() {
		var d model.Dataset
		if err := rows.Scan(&d.ID, &d.UserID, &d.Name, &d.Rows, &d.Cols, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning dataset row: %w", err)
		}
		datasets = append(datasets, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating datasets: %w", err)
	}

	return datasets, nil
}

// DeleteDataset removes a dataset by ID. RowsAffected tells not-found apart
// from success, same pattern as the other delete methods.
func (db *DB) DeleteDataset(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM datasets WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting dataset %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("dataset", id)
	}

	return nil
}
