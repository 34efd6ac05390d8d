// Package filesystem provides the directory-backed entry adapter. Each journal
// entry is one encrypted file named after its date; this package moves bytes
// and never looks inside them.
package filesystem

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/haukened/quill/internal/domain"
	"github.com/haukened/quill/internal/store"
)

// Ensure Dir implements store.EntryDir
var _ store.EntryDir = (*Dir)(nil)

const (
	dirPerm  = 0o700
	filePerm = 0o600
	tmpMark  = ".tmp-"
)

// Dir implements store.EntryDir over a single directory. The directory is
// created lazily by the first mutating call; reads against a missing
// directory behave as an empty store.
type Dir struct {
	root string
}

// New returns a Dir rooted at root. No filesystem access happens here.
func New(root string) *Dir { return &Dir{root: filepath.Clean(root)} }

// Open adapts New to store.Opener.
func Open(root string) store.EntryDir { return New(root) }

// Root returns the directory path.
func (d *Dir) Root() string { return d.root }

// path validates name and joins it to the root. Only canonical entry names
// are accepted, which also rules out separators and traversal.
func (d *Dir) path(name string) (string, error) {
	if _, err := domain.ParseFileName(name); err != nil {
		return "", fmt.Errorf("%w: %q", err, name)
	}
	return filepath.Join(d.root, name), nil
}

func ioErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrIO, op, err)
}

// List returns the names of regular files carrying the entry extension.
// Names are not validated beyond the suffix; callers decide what conforms.
func (d *Dir) List() ([]string, error) {
	des, err := os.ReadDir(d.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, ioErr("list", err)
	}
	var names []string
	for _, de := range des {
		if !de.Type().IsRegular() {
			continue
		}
		if name := de.Name(); strings.HasSuffix(name, domain.FileExt) {
			names = append(names, name)
		}
	}
	return names, nil
}

// Read returns the raw bytes of name.
func (d *Dir) Read(name string) ([]byte, error) {
	p, err := d.path(name)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p) // #nosec G304 name validated by path()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, name)
		}
		return nil, ioErr("read", err)
	}
	return b, nil
}

// Exists reports whether name is present.
func (d *Dir) Exists(name string) (bool, error) {
	p, err := d.path(name)
	if err != nil {
		return false, err
	}
	return exists(p)
}

func exists(p string) (bool, error) {
	_, err := os.Lstat(p)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, ioErr("stat", err)
	}
}

// Replace writes data to name, creating or replacing it. The bytes go to a
// temp file in the same directory which is fsynced and renamed over the
// target, so readers see either the old or the new content.
func (d *Dir) Replace(name string, data []byte) error {
	p, err := d.path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(d.root, dirPerm); err != nil {
		return ioErr("mkdir", err)
	}
	tmp, err := writeTemp(d.root, name, data)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return ioErr("rename", err)
	}
	syncDir(d.root)
	return nil
}

// Create writes data to name only if name does not exist yet. A collision
// returns domain.ErrAlreadyExists and leaves the existing file untouched.
func (d *Dir) Create(name string, data []byte) error {
	p, err := d.path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(d.root, dirPerm); err != nil {
		return ioErr("mkdir", err)
	}
	if err := writeExclusive(p, data); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", domain.ErrAlreadyExists, name)
		}
		return ioErr("create", err)
	}
	syncDir(d.root)
	return nil
}

// SweepTemp removes temp files left behind by interrupted writes whose
// modification time is older than now-age. It returns the number removed.
func (d *Dir) SweepTemp(age time.Duration, now time.Time) (int, error) {
	des, err := os.ReadDir(d.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, ioErr("list", err)
	}
	cutoff := now.Add(-age)
	removed := 0
	var errs []error
	for _, de := range des {
		if !de.Type().IsRegular() || !isTemp(de.Name()) {
			continue
		}
		info, err := de.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(d.root, de.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	if len(errs) > 0 {
		return removed, ioErr("sweep", errors.Join(errs...))
	}
	return removed, nil
}

func isTemp(name string) bool {
	return strings.HasPrefix(name, ".") && strings.Contains(name, domain.FileExt+tmpMark)
}

func writeTemp(dir, name string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, "."+name+tmpMark+"*")
	if err != nil {
		return "", ioErr("create temp", err)
	}
	tmp := f.Name()
	if err := writeAndSync(f, data); err != nil {
		_ = os.Remove(tmp)
		return "", ioErr("write temp", err)
	}
	return tmp, nil
}

func writeExclusive(p string, data []byte) error {
	// #nosec G304 path constructed from a validated entry name
	f, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, filePerm)
	if err != nil {
		return err
	}
	if err := writeAndSync(f, data); err != nil {
		_ = os.Remove(p)
		return err
	}
	return nil
}

func writeAndSync(f *os.File, data []byte) error {
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// syncDir makes a rename or create durable. Not every platform supports
// fsync on a directory, so failures are ignored.
func syncDir(dir string) {
	f, err := os.Open(dir) // #nosec G304 store root
	if err != nil {
		return
	}
	_ = f.Sync()
	_ = f.Close()
}
