package app

import (
	"context"

	"github.com/haukened/quill/internal/metrics"
)

// RekeyResult summarizes a completed password change.
type RekeyResult struct {
	RunID     string
	Processed int
}

// Rekey re-encrypts every entry from oldPassword to newPassword, in listing
// order, overwriting each file in place.
//
// The first entry that fails to decrypt or write stops the run. Entries
// already rewritten are not reverted, so a *RekeyError with Processed > 0
// means the directory now mixes both passwords and needs manual recovery.
// Callers are expected to reject oldPassword == newPassword beforehand.
// ctx is only used for the operation log; the loop itself is not cancellable.
func (s *Service) Rekey(ctx context.Context, oldPassword, newPassword string) (RekeyResult, error) {
	log := s.logger().With("domain", "rekey")
	entries, err := s.Store.List()
	if err != nil {
		return RekeyResult{}, err
	}
	loc := s.Store.Location()
	runID := s.begin(ctx, OpRekey, loc, loc)
	s.inc(metrics.CounterRekeyRuns)
	log.Info("rekey start", "run", runID, "dir", loc, "entries", len(entries))

	for i, e := range entries {
		content, err := s.Store.Read(e.FileName, oldPassword)
		if err == nil {
			err = s.Store.Write(e.FileName, content, newPassword)
		}
		if err != nil {
			s.record(ctx, runID, e.FileName, FileFailed, err)
			s.finish(ctx, runID, OutcomePartialFailure)
			s.inc(metrics.CounterRekeyFailures)
			s.observe(metrics.SummaryRekeyFilesPerRun, int64(i))
			log.Error("rekey aborted", "run", runID, "file", e.FileName, "processed", i, "total", len(entries), "mixed_passwords", i > 0, "error", err)
			return RekeyResult{RunID: runID, Processed: i}, &RekeyError{Processed: i, Total: len(entries), File: e.FileName, Err: err}
		}
		s.record(ctx, runID, e.FileName, FileDone, nil)
	}

	s.finish(ctx, runID, OutcomeSuccess)
	s.observe(metrics.SummaryRekeyFilesPerRun, int64(len(entries)))
	log.Info("rekey complete", "run", runID, "entries", len(entries))
	return RekeyResult{RunID: runID, Processed: len(entries)}, nil
}
