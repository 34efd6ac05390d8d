// Package codec implements the password-based authenticated encryption used
// for every journal entry file.
//
// A blob is laid out as
//
//	salt(16) | nonce(12) | tag(16) | ciphertext(N)
//
// with no header or version byte. The key is derived per call with
// PBKDF2-HMAC-SHA512 over (password, salt) and used once for AES-256-GCM.
// Salt and nonce are fresh on every Encrypt, so two encryptions of the same
// plaintext under the same password never produce the same blob.
package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha512"
	"fmt"
	"hash"

	"golang.org/x/crypto/pbkdf2"

	"github.com/haukened/quill/internal/domain"
)

// Fixed blob geometry and KDF parameters.
const (
	SaltSize          = 16
	NonceSize         = 12
	TagSize           = 16
	KeySize           = 32 // AES-256
	HeaderSize        = SaltSize + NonceSize + TagSize
	DefaultIterations = 350_000
)

// ErrTruncated is returned for blobs shorter than HeaderSize. It matches
// domain.ErrAuthenticationFailed so callers cannot tell it apart from a
// wrong password unless they look for it explicitly.
var ErrTruncated = fmt.Errorf("%w: blob shorter than %d bytes", domain.ErrAuthenticationFailed, HeaderSize)

type kdfFunc func(password, salt []byte, iter, keyLen int, h func() hash.Hash) []byte

// Codec encrypts and decrypts entry blobs. It holds no key material between
// calls and is safe for concurrent use.
type Codec struct {
	iterations int
	kdf        kdfFunc
}

// Option customises a Codec.
type Option func(*Codec)

// WithIterations overrides the PBKDF2 iteration count. Blobs written with one
// count cannot be read with another, so production code keeps the default.
func WithIterations(n int) Option {
	return func(c *Codec) {
		if n > 0 {
			c.iterations = n
		}
	}
}

// New returns a Codec using DefaultIterations unless overridden.
func New(opts ...Option) *Codec {
	c := &Codec{iterations: DefaultIterations, kdf: pbkdf2.Key}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Iterations reports the PBKDF2 iteration count in use.
func (c *Codec) Iterations() int { return c.iterations }

func (c *Codec) deriveKey(password string, salt []byte) []byte {
	pw := []byte(password)
	defer clear(pw)
	return c.kdf(pw, salt, c.iterations, KeySize, sha512.New)
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithTagSize(block, TagSize)
}

// Encrypt seals plaintext under password and returns a self-contained blob.
// An empty plaintext is valid and yields a HeaderSize-byte blob. The plaintext
// slice is not modified or retained.
func (c *Codec) Encrypt(plaintext []byte, password string) ([]byte, error) {
	salt := make([]byte, SaltSize)
	nonce := make([]byte, NonceSize)
	// crypto/rand.Read never returns an error on supported platforms (Go 1.24+).
	_, _ = rand.Read(salt)
	_, _ = rand.Read(nonce)

	key := c.deriveKey(password, salt)
	defer clear(key)
	aead, err := newAEAD(key)
	if err != nil {
		return nil, fmt.Errorf("codec: init cipher: %w", err)
	}

	// Seal appends ciphertext||tag; the on-disk layout wants the tag first.
	sealed := aead.Seal(nil, nonce, plaintext, nil)
	n := len(plaintext)
	blob := make([]byte, HeaderSize+n)
	copy(blob, salt)
	copy(blob[SaltSize:], nonce)
	copy(blob[SaltSize+NonceSize:HeaderSize], sealed[n:])
	copy(blob[HeaderSize:], sealed[:n])
	return blob, nil
}

// Decrypt verifies and opens blob with password. Any authentication failure,
// whether from a wrong password or a damaged blob, returns an error matching
// domain.ErrAuthenticationFailed and no plaintext. Blobs shorter than
// HeaderSize are rejected before any key derivation.
func (c *Codec) Decrypt(blob []byte, password string) ([]byte, error) {
	if len(blob) < HeaderSize {
		return nil, ErrTruncated
	}
	salt := blob[:SaltSize]
	nonce := blob[SaltSize : SaltSize+NonceSize]
	tag := blob[SaltSize+NonceSize : HeaderSize]
	ct := blob[HeaderSize:]

	key := c.deriveKey(password, salt)
	defer clear(key)
	aead, err := newAEAD(key)
	if err != nil {
		return nil, fmt.Errorf("codec: init cipher: %w", err)
	}

	sealed := make([]byte, 0, len(ct)+TagSize)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, domain.ErrAuthenticationFailed
	}
	if plaintext == nil {
		plaintext = []byte{}
	}
	return plaintext, nil
}
