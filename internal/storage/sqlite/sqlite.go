// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/opopescu/billchat/internal/middleware"
	"github.com/opopescu/billchat/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
//
// Profiles, bills, and conversation history are all keyed by user ID, and
// every write runs in a transaction, so writes for one user are serialized
// without any cross-user lock contention.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// checkScope rejects requests whose authenticated identity does not match the
// requested user ID. An empty caller means the request did not go through the
// HTTP boundary (import tool, tests) and is trusted.
func checkScope(ctx context.Context, userID string) error {
	caller := middleware.GetUserID(ctx)
	if caller != "" && caller != userID {
		return fmt.Errorf("%w: caller %q requested %q", storage.ErrAccessDenied, caller, userID)
	}
	return nil
}

// userKnown reports whether the user exists at all: a profile row or at least
// one bill makes a user known.
func (s *SQLiteStore) userKnown(ctx context.Context, userID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT
			(SELECT COUNT(*) FROM profiles WHERE user_id = ?) +
			(SELECT COUNT(*) FROM bills WHERE user_id = ?)`,
		userID, userID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("%w: %v", storage.ErrPersistence, err)
	}
	return n > 0, nil
}
