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

// Compile-time check that *DB implements repository.UserRepository.
var _ repository.UserRepository = (*DB)(nil)

// Upsert creates or updates a user record keyed on the GitHub ID.
//
// On first login we generate a fresh internal ID; on every later login the
// profile fields are refreshed (people change avatars and emails) while the
// internal ID stays stable. The RETURNING clause hands back whichever ID
// won, so the caller always sees the canonical record.
func (db *DB) Upsert(ctx context.Context, user *model.User) error {
	now := time.Now()
	newID := xid.New().String()

	err := db.conn.QueryRowContext(ctx,
		`INSERT INTO users (id, github_id, login, email, avatar_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(github_id) DO UPDATE SET
		     login      = excluded.login,
		     email      = excluded.email,
		     avatar_url = excluded.avatar_url,
		     updated_at = excluded.updated_at
		 RETURNING id, created_at`,
		newID,
		user.GitHubID,
		user.Login,
		user.Email,
		user.AvatarURL,
		now,
		now,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: upserting user: %w", err)
	}

	user.UpdatedAt = now
	return nil
}

// GetUserByID retrieves a user by internal ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, github_id, login, email, avatar_url, created_at, updated_at
		 FROM users
		 WHERE id = ?`,
		id,
	).Scan(
		&u.ID,
		&u.GitHubID,
		&u.Login,
		&u.Email,
		&u.AvatarURL,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}

	return &u, nil
}
