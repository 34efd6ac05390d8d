package app

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/haukened/quill/internal/domain"
	"github.com/haukened/quill/internal/metrics"
)

// ExportOptions selects what Export writes.
type ExportOptions struct {
	// Single writes one combined file instead of one file per entry.
	Single bool
	// Only restricts the export to these entry file names. Empty means all.
	Only []string
}

// ExportResult reports what Export wrote.
type ExportResult struct {
	Exported int
	Failed   int
	Skipped  []string
	Files    []string
}

// SingleExportName returns the combined export file name for the current time.
func (s *Service) SingleExportName() string {
	return fmt.Sprintf("quill_export_%s.txt", s.now().Format("2006-01-02_15-04-05"))
}

// Export decrypts entries in date order, oldest first, and writes them as
// plaintext to dir. Entries that cannot be read are skipped and counted; in
// single-file mode a marker line takes their place. The store is never
// modified: a dir that is, or lies inside, the journal directory fails with
// domain.ErrInvalidTarget before anything is decrypted.
func (s *Service) Export(password, dir string, opts ExportOptions) (ExportResult, error) {
	log := s.logger().With("domain", "export")
	if err := s.checkExportDir(dir); err != nil {
		return ExportResult{}, err
	}
	entries, err := s.selectForExport(opts.Only)
	if err != nil {
		return ExportResult{}, err
	}
	var (
		res ExportResult
		buf strings.Builder
	)
	for i, e := range entries {
		content, err := s.Read(e.FileName, password)
		if err != nil {
			res.Failed++
			res.Skipped = append(res.Skipped, e.FileName)
			log.Warn("entry skipped", "file", e.FileName, "error", err)
			if opts.Single {
				fmt.Fprintf(&buf, "--- Skipped: %s (failed to decrypt) ---\n", e.DisplayName)
				if i < len(entries)-1 {
					buf.WriteString("\n")
				}
			}
			continue
		}
		if opts.Single {
			buf.WriteString(content)
			buf.WriteString("\n")
			if i < len(entries)-1 {
				buf.WriteString("\n")
			}
			res.Exported++
			continue
		}
		if err := s.Sink.WriteFile(dir, e.FileName, []byte(content)); err != nil {
			res.Failed++
			res.Skipped = append(res.Skipped, e.FileName)
			log.Warn("entry not written", "file", e.FileName, "error", err)
			continue
		}
		res.Exported++
		res.Files = append(res.Files, e.FileName)
	}

	if opts.Single {
		name := s.SingleExportName()
		if err := s.Sink.WriteFile(dir, name, []byte(buf.String())); err != nil {
			return res, err
		}
		res.Files = append(res.Files, name)
	}
	s.inc(metrics.CounterExports)
	log.Info("export complete", "dir", dir, "exported", res.Exported, "failed", res.Failed, "single", opts.Single)
	return res, nil
}

func (s *Service) checkExportDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("%w: empty path", domain.ErrInvalidTarget)
	}
	src, err := filepath.Abs(s.Store.Location())
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIO, err)
	}
	dst, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidTarget, err)
	}
	if strings.EqualFold(src, dst) || within(src, dst) {
		return fmt.Errorf("%w: export to %s would write plaintext into the journal", domain.ErrInvalidTarget, dst)
	}
	return nil
}

func (s *Service) selectForExport(only []string) ([]domain.Entry, error) {
	entries, err := s.Store.List()
	if err != nil {
		return nil, err
	}
	slices.Reverse(entries)
	if len(only) == 0 {
		return entries, nil
	}
	want := make(map[string]bool, len(only))
	for _, n := range only {
		if _, err := domain.ParseFileName(n); err != nil {
			return nil, fmt.Errorf("%w: %q", err, n)
		}
		want[n] = true
	}
	out := entries[:0]
	for _, e := range entries {
		if want[e.FileName] {
			out = append(out, e)
			delete(want, e.FileName)
		}
	}
	if len(want) > 0 {
		missing := make([]string, 0, len(want))
		for n := range want {
			missing = append(missing, n)
		}
		slices.Sort(missing)
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, strings.Join(missing, ", "))
	}
	return out, nil
}
