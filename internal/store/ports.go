// Package store defines the lower-level persistence ports used by Store.
// The entry directory adapter and the cipher are kept behind small
// interfaces so Store can be tested with fakes and the adapters can evolve
// independently. Callers outside this package use app.EntryStore.
package store

import "time"

// EntryDir abstracts one directory of entry files. Implementations deal in
// opaque bytes and validated entry file names only.
type EntryDir interface {
	// Root returns the directory path.
	Root() string
	// List returns candidate entry file names in no particular order. A
	// missing directory yields an empty list.
	List() ([]string, error)
	Read(name string) ([]byte, error)
	Exists(name string) (bool, error)
	// Replace creates or atomically replaces name.
	Replace(name string, data []byte) error
	// Create writes name only if it does not exist yet.
	Create(name string, data []byte) error
	// SweepTemp removes abandoned temp files older than age.
	SweepTemp(age time.Duration, now time.Time) (int, error)
}

// Opener returns an EntryDir rooted at root. Store uses it when the journal
// is relocated.
type Opener func(root string) EntryDir

// Cipher is the authenticated encryption codec.
type Cipher interface {
	Encrypt(plaintext []byte, password string) ([]byte, error)
	Decrypt(blob []byte, password string) ([]byte, error)
}
