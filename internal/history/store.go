// Package history records run summaries in SQLite so past curation runs can
// be inspected from the CLI.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Kind distinguishes the two pipeline entry points.
const (
	KindRun     = "run"
	KindRefresh = "refresh"
)

// Record is one completed run.
type Record struct {
	ID          int64
	RunID       string
	Kind        string
	SeedTitle   string
	StartedAt   time.Time
	FinishedAt  time.Time
	Recommended int
	Found       int
	Missing     int
	Added       int
	Removed     int
	Evicted     int
	Failed      int
	Duration    time.Duration
	Notes       string
}

// Store manages run-history persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database and applies
// migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append stores one run record and returns its row id.
func (s *Store) Append(ctx context.Context, record Record) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO runs (
            run_id, kind, seed_title, started_at, finished_at,
            recommended, found, missing, added, removed, evicted, failed,
            duration_ms, notes
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.RunID,
		record.Kind,
		record.SeedTitle,
		record.StartedAt.UTC().Format(time.RFC3339Nano),
		record.FinishedAt.UTC().Format(time.RFC3339Nano),
		record.Recommended,
		record.Found,
		record.Missing,
		record.Added,
		record.Removed,
		record.Evicted,
		record.Failed,
		record.Duration.Milliseconds(),
		record.Notes,
	)
	if err != nil {
		return 0, fmt.Errorf("insert run record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// Recent returns the newest records first, up to limit.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, run_id, kind, seed_title, started_at, finished_at,
            recommended, found, missing, added, removed, evicted, failed,
            duration_ms, notes
        FROM runs ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return records, nil
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var (
		record     Record
		seedTitle  sql.NullString
		notes      sql.NullString
		startedAt  string
		finishedAt string
		durationMS int64
	)
	if err := rows.Scan(
		&record.ID,
		&record.RunID,
		&record.Kind,
		&seedTitle,
		&startedAt,
		&finishedAt,
		&record.Recommended,
		&record.Found,
		&record.Missing,
		&record.Added,
		&record.Removed,
		&record.Evicted,
		&record.Failed,
		&durationMS,
		&notes,
	); err != nil {
		return Record{}, fmt.Errorf("scan run record: %w", err)
	}
	record.SeedTitle = seedTitle.String
	record.Notes = notes.String
	record.Duration = time.Duration(durationMS) * time.Millisecond
	if parsed, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
		record.StartedAt = parsed
	}
	if parsed, err := time.Parse(time.RFC3339Nano, finishedAt); err == nil {
		record.FinishedAt = parsed
	}
	return record, nil
}
