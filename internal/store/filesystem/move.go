package filesystem

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/haukened/quill/internal/domain"
)

// Mover relocates entry files between directories without ever replacing a
// file at the destination.
type Mover struct{}

// MkdirAll creates dir and any missing parents.
func (Mover) MkdirAll(dir string) error {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return ioErr("mkdir", err)
	}
	return nil
}

// Exists reports whether name is present in dir.
func (Mover) Exists(dir, name string) (bool, error) {
	return New(dir).Exists(name)
}

// Move relocates name from srcDir to dstDir. If dstDir already holds a file
// with that name the move fails with domain.ErrAlreadyExists and neither file
// changes. A hard link is tried first; when the directories live on different
// devices the bytes are copied into an exclusively created file instead.
func (Mover) Move(srcDir, dstDir, name string) error {
	src, err := New(srcDir).path(name)
	if err != nil {
		return err
	}
	dst, err := New(dstDir).path(name)
	if err != nil {
		return err
	}

	err = os.Link(src, dst)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrExist):
		return fmt.Errorf("%w: %s", domain.ErrAlreadyExists, filepath.Join(dstDir, name))
	case errors.Is(err, fs.ErrNotExist):
		if ok, _ := exists(src); !ok {
			return fmt.Errorf("%w: %s", domain.ErrNotFound, src)
		}
		return ioErr("link", err)
	default:
		if cerr := copyExclusive(src, dst); cerr != nil {
			if errors.Is(cerr, fs.ErrExist) {
				return fmt.Errorf("%w: %s", domain.ErrAlreadyExists, filepath.Join(dstDir, name))
			}
			return ioErr("copy", cerr)
		}
	}

	if err := os.Remove(src); err != nil {
		// Leave exactly one copy behind.
		_ = os.Remove(dst)
		return ioErr("remove source", err)
	}
	syncDir(dstDir)
	syncDir(srcDir)
	return nil
}

func copyExclusive(src, dst string) error {
	in, err := os.Open(src) // #nosec G304 validated entry path
	if err != nil {
		return err
	}
	defer in.Close()
	// #nosec G304 validated entry path
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, filePerm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return nil
}
