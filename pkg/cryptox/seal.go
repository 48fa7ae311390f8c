// Package cryptox seals the persisted session token at rest.
//
// The stored token is the only long-lived credential this client holds, so
// it never touches disk in the clear: it is sealed with ChaCha20-Poly1305
// under a key derived from the configured key material.
package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/chacha20poly1305"
)

var (
	ErrNoKeyMaterial  = errors.New("cryptox: no key material configured")
	ErrSealedTooShort = errors.New("cryptox: sealed blob too short")
)

// Sealer performs authenticated encryption of small secrets. Construct with
// NewSealer or NewSealerFromFile.
type Sealer struct {
	key []byte
}

// NewSealer derives a 32-byte ChaCha20-Poly1305 key from arbitrary key
// material via SHA-256.
func NewSealer(material []byte) (*Sealer, error) {
	if len(material) == 0 {
		return nil, ErrNoKeyMaterial
	}
	sum := sha256.Sum256(material)
	return &Sealer{key: sum[:]}, nil
}

// NewSealerFromFile loads key material from path. When path is empty the
// STEPUP_STATE_KEY environment variable is used instead.
func NewSealerFromFile(path string) (*Sealer, error) {
	if path != "" {
		material, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cryptox: failed to read key file: %w", err)
		}
		return NewSealer(material)
	}

	if env := os.Getenv("STEPUP_STATE_KEY"); env != "" {
		return NewSealer([]byte(env))
	}

	return nil, ErrNoKeyMaterial
}

// Seal encrypts plaintext. Output layout: [24-byte nonce][ciphertext+tag].
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to construct cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("cryptox: failed to generate nonce: %w", err)
	}

	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a blob produced by Seal. Tampered or truncated blobs fail
// authentication.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to construct cipher: %w", err)
	}

	if len(sealed) < aead.NonceSize() {
		return nil, ErrSealedTooShort
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to open sealed blob: %w", err)
	}
	return plaintext, nil
}
