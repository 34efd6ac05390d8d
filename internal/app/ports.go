// Package app defines the application layer "ports" (interfaces) and simple
// data contracts that the core journal use-cases depend upon. It follows a
// hexagonal (ports & adapters) design: this package declares what the core
// needs, while adapter packages (filesystem and SQLite storage, the HTTP
// layer, the CLI) provide concrete implementations. No SQL or network
// concerns belong here.
package app

import (
	"context"
	"time"

	"github.com/haukened/quill/internal/domain"
)

// Clock abstracts time so export names and operation timestamps are
// deterministic in tests.
type Clock interface {
	// Now returns the current wall-clock time.
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// EntryStore is the storage port for journal entries. The password is passed
// on every call; implementations must not keep it, or any key derived from
// it, between calls.
type EntryStore interface {
	// Location returns the directory currently backing the store.
	Location() string
	// List returns conforming entries ordered by date descending. A missing
	// directory yields an empty list.
	List() ([]domain.Entry, error)
	// Read decrypts one entry.
	Read(name, password string) (string, error)
	// Write encrypts content and creates or replaces the entry.
	Write(name, content, password string) error
	// CreateNew writes the templated initial content for date, or fails with
	// domain.ErrAlreadyExists without touching an existing file.
	CreateNew(date time.Time, mood, password string) (domain.Entry, error)
	// Relocate points the store at another directory without moving files.
	Relocate(dir string)
}

// FileMover moves entry files between directories. Move must never replace
// an existing destination file.
type FileMover interface {
	MkdirAll(dir string) error
	Exists(dir, name string) (bool, error)
	Move(srcDir, dstDir, name string) error
}

// SettingsStore persists the journal directory, the one setting the core
// depends on.
type SettingsStore interface {
	// JournalDir returns the stored directory and whether one was set.
	JournalDir(ctx context.Context) (string, bool, error)
	SetJournalDir(ctx context.Context, dir string) error
}

// ExportSink writes exported plaintext files.
type ExportSink interface {
	WriteFile(dir, name string, data []byte) error
}

// OpKind names a long-running procedure recorded in the operation log.
type OpKind string

// Known operation kinds.
const (
	OpRekey   OpKind = "rekey"
	OpMigrate OpKind = "migrate"
)

// FileStatus is the per-file state recorded during a procedure.
type FileStatus string

// Per-file states.
const (
	FileDone           FileStatus = "done"
	FileFailed         FileStatus = "failed"
	FileRolledBack     FileStatus = "rolled_back"
	FileRollbackFailed FileStatus = "rollback_failed"
)

// Outcome is the final state of a procedure run.
type Outcome string

// Run outcomes.
const (
	OutcomeRunning              Outcome = "running"
	OutcomeSuccess              Outcome = "success"
	OutcomePartialFailure       Outcome = "partial_failure"
	OutcomeSettingsNotPersisted Outcome = "settings_not_persisted"
)

// Operation is one recorded procedure run.
type Operation struct {
	ID         string
	Kind       OpKind
	Source     string
	Target     string
	Outcome    Outcome
	StartedAt  time.Time
	FinishedAt time.Time // zero while running or if the process died mid-run
}

// OperationFile is one per-file record of a run.
type OperationFile struct {
	Name   string
	Status FileStatus
	Detail string
	At     time.Time
}

// OpLog records procedure runs so that partial failures stay observable after
// the process exits. Recording is best-effort and never changes the outcome
// of the procedure itself.
type OpLog interface {
	Begin(ctx context.Context, kind OpKind, source, target string, at time.Time) (string, error)
	RecordFile(ctx context.Context, runID, name string, status FileStatus, detail string, at time.Time) error
	Finish(ctx context.Context, runID string, outcome Outcome, at time.Time) error
	Recent(ctx context.Context, limit int) ([]Operation, error)
	Files(ctx context.Context, runID string) ([]OperationFile, error)
}

// Recorder receives counter and summary observations.
type Recorder interface {
	Inc(name string, delta int64)
	Observe(name string, value int64)
}
