// Package app contains the application orchestration layer for quill. It
// wires the entry store, the file mover and the settings port into the
// journal use-cases, and records what happened through the optional metrics
// and operation-log ports.
package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/haukened/quill/internal/domain"
	"github.com/haukened/quill/internal/metrics"
)

// Service orchestrates the journal use-cases. Store is required. Mover and
// Settings are required for Migrate, Sink for Export. Ops, Metrics, Clock and
// Logger are optional.
//
// Service does not serialize callers: running Rekey and Migrate against the
// same store at once is undefined. Adapters that accept concurrent requests
// must serialize mutating calls themselves.
type Service struct {
	Store    EntryStore
	Mover    FileMover
	Settings SettingsStore
	Sink     ExportSink
	Ops      OpLog
	Metrics  Recorder
	Clock    Clock
	Logger   *slog.Logger
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *Service) inc(name string) {
	if s.Metrics != nil {
		s.Metrics.Inc(name, 1)
	}
}

func (s *Service) observe(name string, v int64) {
	if s.Metrics != nil {
		s.Metrics.Observe(name, v)
	}
}

// Location returns the current journal directory.
func (s *Service) Location() string { return s.Store.Location() }

// List returns every entry, newest first.
func (s *Service) List() ([]domain.Entry, error) { return s.Store.List() }

// ListYear returns the entries of one Solar Hijri year, newest first.
func (s *Service) ListYear(year int) ([]domain.Entry, error) {
	entries, err := s.Store.List()
	if err != nil {
		return nil, err
	}
	return domain.FilterYear(entries, year), nil
}

// Read decrypts one entry.
func (s *Service) Read(name, password string) (string, error) {
	content, err := s.Store.Read(name, password)
	if err != nil {
		if errors.Is(err, domain.ErrAuthenticationFailed) {
			s.inc(metrics.CounterDecryptFailures)
			s.logger().Warn("decrypt failed", "domain", "entry", "file", name)
		}
		return "", err
	}
	s.inc(metrics.CounterEntriesRead)
	return content, nil
}

// Write encrypts content into an entry, replacing it if present.
func (s *Service) Write(name, content, password string) error {
	if err := s.Store.Write(name, content, password); err != nil {
		return err
	}
	s.inc(metrics.CounterEntriesWritten)
	s.logger().Debug("entry written", "domain", "entry", "file", name)
	return nil
}

// CreateNew creates the entry for date with the default mood.
func (s *Service) CreateNew(date time.Time, password string) (domain.Entry, error) {
	return s.CreateNewWithMood(date, domain.DefaultMood, password)
}

// CreateNewWithMood creates the entry for date with the given mood in its
// header line. An existing entry for that day is never overwritten.
func (s *Service) CreateNewWithMood(date time.Time, mood, password string) (domain.Entry, error) {
	e, err := s.Store.CreateNew(date, mood, password)
	if err != nil {
		return domain.Entry{}, err
	}
	s.inc(metrics.CounterEntriesCreated)
	s.logger().Info("entry created", "domain", "entry", "file", e.FileName)
	return e, nil
}

// VerifyPassword checks password against the newest entry. An empty store
// accepts any password, which then becomes the journal password.
func (s *Service) VerifyPassword(password string) error {
	entries, err := s.Store.List()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	_, err = s.Read(entries[0].FileName, password)
	return err
}

// History returns the most recent procedure runs with their per-file records.
func (s *Service) History(ctx context.Context, limit int) ([]Operation, map[string][]OperationFile, error) {
	if s.Ops == nil {
		return nil, nil, nil
	}
	ops, err := s.Ops.Recent(ctx, limit)
	if err != nil {
		return nil, nil, err
	}
	files := make(map[string][]OperationFile, len(ops))
	for _, op := range ops {
		f, err := s.Ops.Files(ctx, op.ID)
		if err != nil {
			return nil, nil, err
		}
		files[op.ID] = f
	}
	return ops, files, nil
}

// oplog helpers: failures are logged and otherwise ignored.

func (s *Service) begin(ctx context.Context, kind OpKind, source, target string) string {
	if s.Ops == nil {
		return ""
	}
	id, err := s.Ops.Begin(ctx, kind, source, target, s.now())
	if err != nil {
		s.logger().Warn("oplog begin", "domain", string(kind), "error", err)
		return ""
	}
	return id
}

func (s *Service) record(ctx context.Context, runID, name string, status FileStatus, cause error) {
	if s.Ops == nil || runID == "" {
		return
	}
	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	if err := s.Ops.RecordFile(ctx, runID, name, status, detail, s.now()); err != nil {
		s.logger().Warn("oplog record", "run", runID, "file", name, "error", err)
	}
}

func (s *Service) finish(ctx context.Context, runID string, outcome Outcome) {
	if s.Ops == nil || runID == "" {
		return
	}
	if err := s.Ops.Finish(ctx, runID, outcome, s.now()); err != nil {
		s.logger().Warn("oplog finish", "run", runID, "error", err)
	}
}
