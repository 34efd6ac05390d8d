package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/haukened/quill/internal/domain"
	"github.com/haukened/quill/internal/metrics"
)

// MigrateResult summarizes a completed relocation.
type MigrateResult struct {
	RunID  string
	Source string
	Target string
	Moved  int
	NoOp   bool
}

// Migrate moves every entry file from the current store location to target
// and, once all moves succeed, persists target as the journal directory.
//
// A target equal to the source (compared case-insensitively) returns at once
// without touching the filesystem. A target inside the source, or containing
// it, fails with domain.ErrInvalidTarget before anything is created.
//
// Each file is moved without overwriting. If any move fails, every file that
// was moved is moved back and a *MigrateError lists the failures; files that
// could not be moved back are logged as unrecoverable and listed too. If all
// files moved but the setting could not be saved, the store still switches
// to target and the error matches domain.ErrSettingsNotPersisted.
func (s *Service) Migrate(ctx context.Context, target string) (MigrateResult, error) {
	log := s.logger().With("domain", "migrate")
	src, err := filepath.Abs(s.Store.Location())
	if err != nil {
		return MigrateResult{}, fmt.Errorf("%w: %w", domain.ErrIO, err)
	}
	if strings.TrimSpace(target) == "" {
		return MigrateResult{}, fmt.Errorf("%w: empty path", domain.ErrInvalidTarget)
	}
	dst, err := filepath.Abs(target)
	if err != nil {
		return MigrateResult{}, fmt.Errorf("%w: %w", domain.ErrInvalidTarget, err)
	}
	res := MigrateResult{Source: src, Target: dst}

	if strings.EqualFold(src, dst) {
		res.NoOp = true
		return res, nil
	}
	if within(src, dst) || within(dst, src) {
		return res, fmt.Errorf("%w: %s and %s contain one another", domain.ErrInvalidTarget, src, dst)
	}
	if err := s.Mover.MkdirAll(dst); err != nil {
		return res, err
	}
	entries, err := s.Store.List()
	if err != nil {
		return res, err
	}

	res.RunID = s.begin(ctx, OpMigrate, src, dst)
	s.inc(metrics.CounterMigrateRuns)
	log.Info("migrate start", "run", res.RunID, "from", src, "to", dst, "entries", len(entries))

	var (
		moved  []string
		failed []FileError
	)
	for _, e := range entries {
		if err := s.Mover.Move(src, dst, e.FileName); err != nil {
			failed = append(failed, FileError{Name: e.FileName, Err: err})
			s.record(ctx, res.RunID, e.FileName, FileFailed, err)
			log.Warn("move failed", "run", res.RunID, "file", e.FileName, "error", err)
			continue
		}
		moved = append(moved, e.FileName)
		s.record(ctx, res.RunID, e.FileName, FileDone, nil)
	}

	if len(failed) > 0 {
		merr := &MigrateError{Source: src, Target: dst, Failed: failed}
		merr.RollbackFailed = s.rollback(ctx, res.RunID, src, dst, moved)
		s.finish(ctx, res.RunID, OutcomePartialFailure)
		s.inc(metrics.CounterMigrateFailures)
		s.observe(metrics.SummaryMigrateFilesPerRun, int64(len(moved)))
		log.Error("migrate rolled back", "run", res.RunID, "failed", len(failed), "rollback_failed", len(merr.RollbackFailed))
		return res, merr
	}
	res.Moved = len(moved)
	s.observe(metrics.SummaryMigrateFilesPerRun, int64(res.Moved))

	// Files now live at dst whether or not the setting sticks.
	s.Store.Relocate(dst)
	if err := s.Settings.SetJournalDir(ctx, dst); err != nil {
		s.finish(ctx, res.RunID, OutcomeSettingsNotPersisted)
		s.inc(metrics.CounterMigrateFailures)
		log.Error("journal directory not saved", "run", res.RunID, "dir", dst, "error", err)
		return res, fmt.Errorf("%w: %s: %w", domain.ErrSettingsNotPersisted, dst, err)
	}
	s.finish(ctx, res.RunID, OutcomeSuccess)
	log.Info("migrate complete", "run", res.RunID, "moved", res.Moved)
	return res, nil
}

// rollback moves back, newest move first, every file that is at dst and no
// longer at src. It returns the files it could not restore.
func (s *Service) rollback(ctx context.Context, runID, src, dst string, moved []string) []FileError {
	log := s.logger().With("domain", "migrate", "run", runID)
	var stranded []FileError
	for i := len(moved) - 1; i >= 0; i-- {
		name := moved[i]
		err := s.rollbackOne(src, dst, name)
		if err != nil {
			stranded = append(stranded, FileError{Name: name, Err: err})
			s.record(ctx, runID, name, FileRollbackFailed, err)
			log.Error("rollback failed", "file", name, "at", dst, "unrecoverable", true, "error", err)
			continue
		}
		s.record(ctx, runID, name, FileRolledBack, nil)
	}
	return stranded
}

func (s *Service) rollbackOne(src, dst, name string) error {
	atDst, err := s.Mover.Exists(dst, name)
	if err != nil {
		return err
	}
	atSrc, err := s.Mover.Exists(src, name)
	if err != nil {
		return err
	}
	if !atDst || atSrc {
		return fmt.Errorf("%w: unexpected state (at target=%t, at source=%t)", domain.ErrIO, atDst, atSrc)
	}
	return s.Mover.Move(dst, src, name)
}

// within reports whether child is strictly below parent. Comparison is
// case-insensitive and by whole path components.
func within(parent, child string) bool {
	rel, err := filepath.Rel(strings.ToLower(parent), strings.ToLower(child))
	if err != nil || rel == "." || filepath.IsAbs(rel) {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
