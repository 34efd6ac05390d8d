// Package sqlite provides the SQLite-backed adapters for the persisted
// journal directory setting and the operation log of rekey and migrate runs.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/haukened/quill/internal/app"

	// database/sql SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

var (
	_ app.SettingsStore = (*Store)(nil)
	_ app.OpLog         = (*Store)(nil)
)

const keyJournalDir = "journal_dir"

// Store implements app.SettingsStore and app.OpLog using SQLite (via
// database/sql). It is safe for concurrent use.
type Store struct {
	db    *sql.DB
	newID func() string
}

// Open opens the database at dsn and applies the pragmas the adapters expect.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON; PRAGMA synchronous=FULL;"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// New constructs a Store, initializing the required schema if absent.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db, newID: func() string { return uuid.NewString() }}
	if err := s.init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	const schema = `
CREATE TABLE IF NOT EXISTS settings (
key TEXT PRIMARY KEY,
value TEXT NOT NULL,
updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS operations (
id TEXT PRIMARY KEY,
kind TEXT NOT NULL,
source TEXT NOT NULL,
target TEXT NOT NULL,
outcome TEXT NOT NULL,
started_at INTEGER NOT NULL,
finished_at INTEGER
);
CREATE TABLE IF NOT EXISTS operation_files (
seq INTEGER PRIMARY KEY AUTOINCREMENT,
op_id TEXT NOT NULL REFERENCES operations(id) ON DELETE CASCADE,
name TEXT NOT NULL,
status TEXT NOT NULL,
detail TEXT NOT NULL DEFAULT '',
at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS operation_files_op ON operation_files(op_id);`
	_, err := s.db.Exec(schema)
	return err
}

// JournalDir returns the persisted journal directory, if any.
func (s *Store) JournalDir(ctx context.Context) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key=?`, keyJournalDir).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// SetJournalDir persists dir as the journal directory.
func (s *Store) SetJournalDir(ctx context.Context, dir string) error {
	const q = `INSERT INTO settings(key, value, updated_at) VALUES(?,?,?)
ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`
	_, err := s.db.ExecContext(ctx, q, keyJournalDir, dir, time.Now().Unix())
	return err
}

// Begin records the start of a run and returns its ID.
func (s *Store) Begin(ctx context.Context, kind app.OpKind, source, target string, at time.Time) (string, error) {
	id := s.newID()
	const q = `INSERT INTO operations(id, kind, source, target, outcome, started_at) VALUES(?,?,?,?,?,?)`
	if _, err := s.db.ExecContext(ctx, q, id, string(kind), source, target, string(app.OutcomeRunning), at.UnixMilli()); err != nil {
		return "", err
	}
	return id, nil
}

// RecordFile appends one per-file record to a run.
func (s *Store) RecordFile(ctx context.Context, runID, name string, status app.FileStatus, detail string, at time.Time) error {
	const q = `INSERT INTO operation_files(op_id, name, status, detail, at) VALUES(?,?,?,?,?)`
	_, err := s.db.ExecContext(ctx, q, runID, name, string(status), detail, at.UnixMilli())
	return err
}

// Finish stores the final outcome of a run.
func (s *Store) Finish(ctx context.Context, runID string, outcome app.Outcome, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE operations SET outcome=?, finished_at=? WHERE id=?`, string(outcome), at.UnixMilli(), runID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("operation %s not found", runID)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]app.Operation, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `SELECT id, kind, source, target, outcome, started_at, finished_at FROM operations ORDER BY started_at DESC, rowid DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ops []app.Operation
	for rows.Next() {
		var (
			op            app.Operation
			kind, outcome string
			started       int64
			finished      sql.NullInt64
		)
		if err := rows.Scan(&op.ID, &kind, &op.Source, &op.Target, &outcome, &started, &finished); err != nil {
			return nil, err
		}
		op.Kind = app.OpKind(kind)
		op.Outcome = app.Outcome(outcome)
		op.StartedAt = time.UnixMilli(started).UTC()
		if finished.Valid {
			op.FinishedAt = time.UnixMilli(finished.Int64).UTC()
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ops, nil
}

// Files returns the per-file records of a run in the order they were written.
func (s *Store) Files(ctx context.Context, runID string) ([]app.OperationFile, error) {
	const q = `SELECT name, status, detail, at FROM operation_files WHERE op_id=? ORDER BY seq`
	rows, err := s.db.QueryContext(ctx, q, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var files []app.OperationFile
	for rows.Next() {
		var (
			f      app.OperationFile
			status string
			at     int64
		)
		if err := rows.Scan(&f.Name, &status, &f.Detail, &at); err != nil {
			return nil, err
		}
		f.Status = app.FileStatus(status)
		f.At = time.UnixMilli(at).UTC()
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return files, nil
}
