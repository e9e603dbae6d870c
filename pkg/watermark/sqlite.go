package watermark

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// registers the "sqlite" driver
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS watermarks (
	key        TEXT PRIMARY KEY,
	ts_ms      INTEGER NOT NULL,
	updated_at TEXT NOT NULL
)`

// SQLiteStore persists watermarks in a single SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (and creates if needed) the database at path.
// Use ":memory:" for an ephemeral store.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	// every connection to ":memory:" is a separate database
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite %s: %w", p, err)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Get retrieves the watermark for key.
// Returns ErrNotFound if the key doesn't exist.
func (s *SQLiteStore) Get(ctx context.Context, key string) (time.Time, error) {
	var ms int64
	err := s.db.QueryRowContext(ctx, `SELECT ts_ms FROM watermarks WHERE key = ?`, key).Scan(&ms)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			storeMisses.WithLabelValues("sqlite").Inc()
			return time.Time{}, ErrNotFound
		}
		storeErrors.WithLabelValues("sqlite", "get").Inc()
		return time.Time{}, fmt.Errorf("sqlite get: %w", err)
	}

	storeReads.WithLabelValues("sqlite").Inc()
	return time.UnixMilli(ms), nil
}

// Set upserts the watermark for key.
func (s *SQLiteStore) Set(ctx context.Context, key string, ts time.Time) error {
	rec := NewRecord(ts)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO watermarks (key, ts_ms, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET ts_ms = excluded.ts_ms, updated_at = excluded.updated_at`,
		key, rec.TS, rec.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		storeErrors.WithLabelValues("sqlite", "set").Inc()
		return fmt.Errorf("sqlite set: %w", err)
	}

	storeWrites.WithLabelValues("sqlite").Inc()
	return nil
}

// Delete removes the watermark for key.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM watermarks WHERE key = ?`, key); err != nil {
		storeErrors.WithLabelValues("sqlite", "delete").Inc()
		return fmt.Errorf("sqlite delete: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
