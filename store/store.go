// Package store persists users, prompts and optimization results in SQLite.
// The driver is modernc.org/sqlite (pure Go, registered as "sqlite").
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a user, prompt or optimization does not exist.
var ErrNotFound = errors.New("not found")

// Store wraps *sql.DB with the prompt and optimization queries.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path with WAL and foreign keys
// enabled and applies migrations. ":memory:" opens a private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := "file::memory:?_pragma=foreign_keys(1)"
	if path != ":memory:" {
		dsn = path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store.Open: open: %w", err)
	}
	// One connection: sqlite allows a single writer, and ":memory:" is per connection.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store.Open: ping: %w", err)
	}
	s := &Store{db: db}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates the schema once per schema version.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, ddlMeta); err != nil {
		return fmt.Errorf("store.Migrate: meta table: %w", err)
	}

	var version int
	row := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key='schema_version'`)
	if err := row.Scan(&version); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("store.Migrate: read version: %w", err)
	}
	if version >= schemaVersion {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store.Migrate: begin: %w", err)
	}
	defer tx.Rollback()

	ddls := append([]string{ddlUsers, ddlPrompts, ddlOptimizations}, ddlIndexes...)
	for _, ddl := range ddls {
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("store.Migrate: %w", err)
		}
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES ('schema_version', ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value`, schemaVersion)
	if err != nil {
		return fmt.Errorf("store.Migrate: set version: %w", err)
	}
	return tx.Commit()
}

func notFound(kind string, id int64) error {
	return fmt.Errorf("%s %d %w", kind, id, ErrNotFound)
}

// placeholders returns "?, ?, ..." with n markers.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
