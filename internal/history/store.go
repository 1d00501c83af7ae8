package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"poolsync/internal/config"
	"poolsync/internal/sequencer"
	"poolsync/internal/services"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; users clear the history database after a bump.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Store manages run-history persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database under the log
// directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.LogDir, "history.db")
	db, err := sql.Open("sqlite", dbPath)
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

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
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

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	err = s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to reset)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// RecordRun persists one run outcome and its per-source job statistics.
// runErr may be nil for successful runs.
func (s *Store) RecordRun(ctx context.Context, result *sequencer.RunResult, runErr error) error {
	if result == nil {
		return errors.New("run result required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var failure, message any
	if runErr != nil {
		failure = services.Classify(runErr)
		message = runErr.Error()
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at, state, dry_run, failure, error_message)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		result.RunID,
		result.StartedAt.UTC().Format(time.RFC3339Nano),
		result.FinishedAt.UTC().Format(time.RFC3339Nano),
		string(result.State),
		boolToInt(result.DryRun),
		failure,
		message,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, job := range result.Jobs {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO run_jobs (run_id, position, source, protect_rules,
                files_transferred, files_deleted, bytes_transferred, elapsed_ms)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			result.RunID,
			i,
			job.Source,
			job.ProtectRules,
			job.Report.FilesTransferred,
			job.Report.FilesDeleted,
			job.Report.TransferredBytes,
			job.Elapsed.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("insert run job: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first, with aggregated job
// statistics.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.started_at, r.finished_at, r.state, r.dry_run, r.failure, r.error_message,
                COUNT(j.id), COALESCE(SUM(j.files_transferred), 0),
                COALESCE(SUM(j.files_deleted), 0), COALESCE(SUM(j.bytes_transferred), 0)
         FROM runs r
         LEFT JOIN run_jobs j ON j.run_id = r.id
         GROUP BY r.id
         ORDER BY r.started_at DESC
         LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run                 Run
			startedAt, finished string
			dryRun              int
			failure, message    sql.NullString
		)
		if err := rows.Scan(&run.ID, &startedAt, &finished, &run.State, &dryRun, &failure, &message,
			&run.Jobs, &run.FilesTransferred, &run.FilesDeleted, &run.BytesTransferred); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if run.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
			return nil, fmt.Errorf("parse finished_at: %w", err)
		}
		run.DryRun = dryRun != 0
		run.Failure = failure.String
		run.ErrorMessage = message.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// JobsForRun returns the per-source statistics of one run in execution order.
func (s *Store) JobsForRun(ctx context.Context, runID string) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source, protect_rules, files_transferred, files_deleted, bytes_transferred, elapsed_ms
         FROM run_jobs
         WHERE run_id = ?
         ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var (
			job       Job
			elapsedMS int64
		)
		if err := rows.Scan(&job.Source, &job.ProtectRules, &job.FilesTransferred,
			&job.FilesDeleted, &job.BytesTransferred, &elapsedMS); err != nil {
			return nil, fmt.Errorf("scan run job: %w", err)
		}
		job.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
