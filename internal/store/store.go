// Package store records harness run history: one row per
// (version, scenario) outcome, so regressions across catalog releases
// can be compared between invocations.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/qdbcompat/internal/release"
)

//go:embed schema.sql
var schemaSQL string

// Store provides durable storage for run outcomes.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db *sql.DB
}

// RunRecord is one scenario outcome within one version's suite run.
type RunRecord struct {
	Version   release.Version
	Scenario  string
	Status    string // "pass", "fail" or "skip"
	Detail    string // failure message, empty otherwise
	Duration  time.Duration
	StartedAt time.Time
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and the schema automatically; safe to call
// against an existing database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordRun appends one scenario outcome.
func (s *Store) RecordRun(ctx context.Context, rec RunRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (version, scenario, status, detail, duration_ms, started_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Version.String(),
		rec.Scenario,
		rec.Status,
		rec.Detail,
		rec.Duration.Milliseconds(),
		rec.StartedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// RunsForVersion returns recorded outcomes for one version, oldest
// first.
func (s *Store) RunsForVersion(ctx context.Context, version release.Version) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT version, scenario, status, detail, duration_ms, started_at
		FROM runs WHERE version = ? ORDER BY id ASC`,
		version.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var rec RunRecord
		var versionStr, startedAt string
		var durationMS int64
		if err := rows.Scan(&versionStr, &rec.Scenario, &rec.Status, &rec.Detail, &durationMS, &startedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if rec.Version, err = release.ParseVersion(versionStr); err != nil {
			return nil, fmt.Errorf("stored version %q: %w", versionStr, err)
		}
		if rec.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, fmt.Errorf("stored timestamp %q: %w", startedAt, err)
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, rec)
	}
	return records, rows.Err()
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}
