package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sakif/data-analyzer/internal/apperror"
	"github.com/sakif/data-analyzer/internal/repository"
)

// Compile-time check that *DB implements repository.CredentialRepository.
var _ repository.CredentialRepository = (*DB)(nil)

// SaveCredential stores the sealed API key for a user, replacing any
// previous one. One key per user, so this is an upsert on the primary key.
func (db *DB) SaveCredential(ctx context.Context, userID string, sealed []byte) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO credentials (user_id, sealed_key, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		     sealed_key = excluded.sealed_key,
		     updated_at = excluded.updated_at`,
		userID,
		sealed,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: saving credential: %w", err)
	}

	return nil
}

// GetCredential returns the sealed key blob for a user.
// Returns apperror.ErrNotFound if the user never saved one.
func (db *DB) GetCredential(ctx context.Context, userID string) ([]byte, error) {
	var sealed []byte

	err := db.conn.QueryRowContext(ctx,
		`SELECT sealed_key FROM credentials WHERE user_id = ?`,
		userID,
	).Scan(&sealed)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("credential", userID)
		}
		return nil, fmt.Errorf("sqlite: getting credential: %w", err)
	}

	return sealed, nil
}

// DeleteCredential removes a user's stored key.
func (db *DB) DeleteCredential(ctx context.Context, userID string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM credentials WHERE user_id = ?`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting credential: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("credential", userID)
	}

	return nil
}
