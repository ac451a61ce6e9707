// Package secrets seals the small pieces of credential material the upstream
// contract forces the gateway to retain. The upstream users/logs lookups
// require the login password hash on every call, so the hash survives for the
// session's lifetime — but only secretbox-sealed, never in the clear.
package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

var ErrSealedDataCorrupt = errors.New("sealed data corrupt or wrong key")

// Sealer encrypts and decrypts short secrets with a key derived from the
// gateway secret.
type Sealer struct {
	key [32]byte
}

// NewSealer derives the sealing key from the configured gateway secret via
// HKDF-SHA256.
func NewSealer(gatewaySecret string) (*Sealer, error) {
	if gatewaySecret == "" {
		return nil, errors.New("secrets: empty gateway secret")
	}

	s := &Sealer{}
	kdf := hkdf.New(sha256.New, []byte(gatewaySecret), nil, []byte("evac-gateway/session-seal/v1"))
	if _, err := io.ReadFull(kdf, s.key[:]); err != nil {
		return nil, fmt.Errorf("secrets: derive key: %w", err)
	}
	return s, nil
}

// Seal encrypts plain with a fresh random nonce. The nonce is prepended to
// the returned ciphertext.
func (s *Sealer) Seal(plain []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("secrets: nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plain, &nonce, &s.key), nil
}

// Open decrypts a Seal output. Tampered or foreign ciphertext fails with
// ErrSealedDataCorrupt.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < nonceSize+secretbox.Overhead {
		return nil, ErrSealedDataCorrupt
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])

	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &s.key)
	if !ok {
		return nil, ErrSealedDataCorrupt
	}
	return plain, nil
}
