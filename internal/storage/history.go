// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/gpureset/internal/reset"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotFound is returned when a Run ID is not in the store.
	ErrNotFound = errors.New("run not found")
	// ErrSchemaVersion is returned for a database written by a newer build.
	ErrSchemaVersion = errors.New("unsupported history schema version")
)

// =============================================================================
// RUN STORE
// =============================================================================

// RunSummary is a stored Run without its outcomes.
type RunSummary struct {
	ID         string        `json:"id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Succeeded  int           `json:"succeeded"`
	Failed     int           `json:"failed"`
	Duration   time.Duration `json:"duration_ns"`
}

// RunStore persists reset Runs in SQLite.
type RunStore struct {
	db   *sql.DB
	path string
}

// Open opens or creates the history database at path.
func Open(ctx context.Context, path string) (*RunStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &RunStore{db: db, path: path}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *RunStore) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, InitMetadata); err != nil {
		return err
	}

	var raw string
	if err := s.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = 'schema_version'").Scan(&raw); err != nil {
		return err
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v > SchemaVersion {
		return fmt.Errorf("%w: %s", ErrSchemaVersion, raw)
	}
	return nil
}

// Path returns the database file path.
func (s *RunStore) Path() string {
	return s.path
}

// Close closes the database.
func (s *RunStore) Close() error {
	return s.db.Close()
}

// Save stores run and its outcomes. Saving the same ID twice replaces it.
func (s *RunStore) Save(ctx context.Context, run *reset.Run) error {
	if run == nil || run.ID == "" {
		return errors.New("run has no id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", run.ID); err != nil {
		return fmt.Errorf("failed to replace run: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO runs (id, started_at, finished_at, succeeded, failed) VALUES (?, ?, ?, ?, ?)",
		run.ID, run.StartedAt.UnixNano(), run.FinishedAt.UnixNano(), run.Succeeded(), run.Failed())
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO outcomes
		(run_id, seq, strategy_id, strategy, status, kind, detail, duration_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare outcome insert: %w", err)
	}
	defer stmt.Close()

	for i, o := range run.Outcomes {
		detail := o.Detail
		if detail == "" && o.Err != nil {
			detail = o.Err.Error()
		}
		_, err := stmt.ExecContext(ctx, run.ID, i, o.StrategyID, o.Strategy,
			o.Status.String(), o.Kind.String(), detail, int64(o.Duration))
		if err != nil {
			return fmt.Errorf("failed to insert outcome %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// Recent returns up to limit Runs, newest first. limit <= 0 means all.
func (s *RunStore) Recent(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, started_at, finished_at, succeeded, failed FROM runs ORDER BY started_at DESC, id DESC LIMIT ?",
		limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			sum               RunSummary
			started, finished int64
		)
		if err := rows.Scan(&sum.ID, &started, &finished, &sum.Succeeded, &sum.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		sum.StartedAt = time.Unix(0, started)
		sum.FinishedAt = time.Unix(0, finished)
		sum.Duration = sum.FinishedAt.Sub(sum.StartedAt)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Get loads one Run with its outcomes in execution order.
func (s *RunStore) Get(ctx context.Context, id string) (*reset.Run, error) {
	var started, finished int64
	err := s.db.QueryRowContext(ctx, "SELECT started_at, finished_at FROM runs WHERE id = ?", id).Scan(&started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}

	outcomes, err := s.Outcomes(ctx, id)
	if err != nil {
		return nil, err
	}
	return &reset.Run{
		ID:         id,
		StartedAt:  time.Unix(0, started),
		FinishedAt: time.Unix(0, finished),
		Outcomes:   outcomes,
	}, nil
}

// Outcomes returns the outcomes of one Run in execution order.
func (s *RunStore) Outcomes(ctx context.Context, runID string) ([]reset.Outcome, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT strategy_id, strategy, status, kind, detail, duration_ns
		FROM outcomes WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var out []reset.Outcome
	for rows.Next() {
		var (
			o            reset.Outcome
			status, kind string
			dur          int64
		)
		if err := rows.Scan(&o.StrategyID, &o.Strategy, &status, &kind, &o.Detail, &dur); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		o.Status = reset.ParseStatus(status)
		o.Kind = reset.ParseKind(kind)
		o.Duration = time.Duration(dur)
		out = append(out, o)
	}
	return out, rows.Err()
}

// Count returns the number of stored Runs.
func (s *RunStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return n, nil
}

// Prune deletes all but the newest keep Runs and returns how many were removed.
func (s *RunStore) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id NOT IN (
		SELECT id FROM runs ORDER BY started_at DESC, id DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	return res.RowsAffected()
}
