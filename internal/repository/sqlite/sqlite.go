// Package sqlite implements the repository interfaces using SQLite as the
// storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database — it lives inside the Go binary as a single
// file. No separate database server to install, configure, or manage. The
// analyzer is a single-server app; its write volume is one row per upload
// and one per analysis, which SQLite handles without breaking a sweat.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo (calls C code from Go), which means you need a C
// compiler installed and cross-compilation becomes painful. modernc.org/sqlite
// is a pure Go translation of the SQLite C code — no C compiler needed,
// works everywhere Go works.
package sqlite

import (
	"database/sql"
	"fmt"

	// Side-effect import: registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and provides the repository methods.
// It implements every repository interface — one storage type, four
// concerns, which keeps the wiring in server.go to a single value.
type DB struct {
	conn *sql.DB
}

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/analyzer.db"  → file-based database (persistent)
//   - ":memory:"          → in-memory database (great for tests, lost on close)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Ping verifies the connection actually works. Without this, a bad path
	// or permissions issue would only surface on the first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL mode allows concurrent reads while a write is happening —
	// relevant once several sessions upload and analyze at the same time.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are OFF by default in SQLite; datasets/analyses/
	// credentials all reference users, so turn them on.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS keeps it
// idempotent — safe to run on every startup.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			github_id  INTEGER NOT NULL UNIQUE,
			login      TEXT NOT NULL,
			email      TEXT NOT NULL DEFAULT '',
			avatar_url TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// user_id is free text, not a foreign key: the single-user deployment
	// (auth disabled) owns rows under the fixed "local" identity with no
	// users row behind it.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS datasets (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL DEFAULT '',
			name       TEXT NOT NULL,
			content    BLOB NOT NULL,
			rows       INTEGER NOT NULL DEFAULT 0,
			cols       INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_datasets_user_id ON datasets(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating datasets table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS analyses (
			id           TEXT PRIMARY KEY,
			user_id      TEXT NOT NULL DEFAULT '',
			dataset_id   TEXT NOT NULL,
			prompt       TEXT NOT NULL,
			code         TEXT NOT NULL DEFAULT '',
			error        TEXT NOT NULL DEFAULT '',
			artifact     BLOB,
			created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_analyses_user_id ON analyses(user_id);
		CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating analyses table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS credentials (
			user_id    TEXT PRIMARY KEY,
			sealed_key BLOB NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating credentials table: %w", err)
	}

	return nil
}
