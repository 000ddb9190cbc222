// Package sqlite persists restart timings in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"driftwatch/pkg/sdk/types"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("open restart db: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open restart db: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set restart db journal mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set restart db busy timeout: %w", err)
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS restart_timings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	file_path TEXT NOT NULL,
	host TEXT NOT NULL,
	time_pull_ms INTEGER NOT NULL,
	time_restart_ms INTEGER NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize restart timings schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordRestarts stores a batch of restart timings in one transaction.
func (s *Store) RecordRestarts(ctx context.Context, host string, timings []types.RestartTiming, at time.Time) error {
	if len(timings) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin restart timings tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO restart_timings
		(file_path, host, time_pull_ms, time_restart_ms, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare restart timing insert: %w", err)
	}
	defer stmt.Close()

	createdAt := at.UTC().Format(time.RFC3339Nano)
	for _, t := range timings {
		if _, err := stmt.ExecContext(ctx, t.Unit, host, t.Pull.Milliseconds(), t.Restart.Milliseconds(), t.Error, createdAt); err != nil {
			return fmt.Errorf("insert restart timing %q: %w", t.Unit, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit restart timings: %w", err)
	}
	return nil
}

// ListRestarts returns the most recent restarts, newest first. An empty unit
// matches every unit.
func (s *Store) ListRestarts(ctx context.Context, unit string, limit int) ([]types.RestartRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, file_path, host, time_pull_ms, time_restart_ms, error, created_at FROM restart_timings`
	args := []any{}
	if unit = strings.TrimSpace(unit); unit != "" {
		query += ` WHERE file_path = ?`
		args = append(args, unit)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list restart timings: %w", err)
	}
	defer rows.Close()

	out := make([]types.RestartRecord, 0)
	for rows.Next() {
		var rec types.RestartRecord
		var pullMS, restartMS int64
		var createdAt string
		if err := rows.Scan(&rec.ID, &rec.Unit, &rec.Host, &pullMS, &restartMS, &rec.Error, &createdAt); err != nil {
			return nil, fmt.Errorf("scan restart timing row: %w", err)
		}
		rec.Pull = time.Duration(pullMS) * time.Millisecond
		rec.Restart = time.Duration(restartMS) * time.Millisecond
		rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse restart timing %d created_at: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate restart timing rows: %w", err)
	}
	return out, nil
}
