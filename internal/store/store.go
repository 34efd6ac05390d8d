// Package store provides the concrete implementation of the app.EntryStore
// port by composing an EntryDir with the encryption codec. External packages
// construct it via New and use it through app.EntryStore.
package store

import (
	"errors"
	"sync"
	"time"

	"github.com/haukened/quill/internal/app"
	"github.com/haukened/quill/internal/domain"
)

// Store maps journal entries to encrypted files in a single directory.
// Every call re-reads the directory; nothing is cached between calls and no
// password or key is retained. The mutex only guards the current directory
// handle, it does not serialize operations against the files themselves.
type Store struct {
	mu     sync.RWMutex
	dir    EntryDir
	open   Opener
	cipher Cipher
}

var _ app.EntryStore = (*Store)(nil)

// New returns a Store rooted at root.
func New(root string, open Opener, cipher Cipher) *Store {
	return &Store{dir: open(root), open: open, cipher: cipher}
}

func (s *Store) current() EntryDir {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dir
}

// Location returns the directory currently backing the store.
func (s *Store) Location() string { return s.current().Root() }

// Relocate points the store at a new directory. Files are not touched.
func (s *Store) Relocate(root string) {
	d := s.open(root)
	s.mu.Lock()
	s.dir = d
	s.mu.Unlock()
}

// List returns all conforming entries, newest first. Files whose names do not
// decode to a date are skipped.
func (s *Store) List() ([]domain.Entry, error) {
	names, err := s.current().List()
	if err != nil {
		return nil, err
	}
	entries := make([]domain.Entry, 0, len(names))
	for _, n := range names {
		e, err := domain.ParseFileName(n)
		if err != nil {
			continue
		}
		entries = append(entries, e)
	}
	domain.SortNewestFirst(entries)
	return entries, nil
}

// Read decrypts name with password.
func (s *Store) Read(name, password string) (string, error) {
	blob, err := s.current().Read(name)
	if err != nil {
		return "", err
	}
	pt, err := s.cipher.Decrypt(blob, password)
	if err != nil {
		return "", err
	}
	content := string(pt)
	clear(pt)
	return content, nil
}

// Write encrypts content with password and replaces name.
func (s *Store) Write(name, content, password string) error {
	if _, err := domain.ParseFileName(name); err != nil {
		return err
	}
	pt := []byte(content)
	blob, err := s.cipher.Encrypt(pt, password)
	clear(pt)
	if err != nil {
		return err
	}
	return s.current().Replace(name, blob)
}

// CreateNew writes the templated first content for date. If an entry for that
// day already exists nothing is written and domain.ErrAlreadyExists is
// returned.
func (s *Store) CreateNew(date time.Time, mood, password string) (domain.Entry, error) {
	name := domain.FileNameFor(date)
	entry, err := domain.ParseFileName(name)
	if err != nil {
		return domain.Entry{}, err
	}
	dir := s.current()
	// Skip the KDF when the collision is already visible.
	if ok, err := dir.Exists(name); err != nil {
		return domain.Entry{}, err
	} else if ok {
		return domain.Entry{}, domain.ErrAlreadyExists
	}
	pt := []byte(domain.Template(date, mood))
	blob, err := s.cipher.Encrypt(pt, password)
	clear(pt)
	if err != nil {
		return domain.Entry{}, err
	}
	if err := dir.Create(name, blob); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return domain.Entry{}, domain.ErrAlreadyExists
		}
		return domain.Entry{}, err
	}
	return entry, nil
}

// SweepTemp removes abandoned temp files from the current directory.
func (s *Store) SweepTemp(age time.Duration, now time.Time) (int, error) {
	return s.current().SweepTemp(age, now)
}
