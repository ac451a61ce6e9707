package secrets

import (
	"bytes"
	"testing"
)

func TestSealer_RoundTrip(t *testing.T) {
	s, err := NewSealer("station-secret")
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}

	plain := []byte("9f86d081884c7d659a2feaa0c55ad015")
	sealed, err := s.Seal(plain)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if bytes.Contains(sealed, plain) {
		t.Fatalf("sealed output contains plaintext")
	}

	got, err := s.Open(sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatalf("round trip mismatch: %q != %q", got, plain)
	}
}

func TestSealer_NonceUnique(t *testing.T) {
	s, _ := NewSealer("station-secret")
	a, _ := s.Seal([]byte("same"))
	b, _ := s.Seal([]byte("same"))
	if bytes.Equal(a, b) {
		t.Fatalf("two seals of the same plaintext must differ")
	}
}

func TestSealer_TamperDetected(t *testing.T) {
	s, _ := NewSealer("station-secret")
	sealed, _ := s.Seal([]byte("payload"))
	sealed[len(sealed)-1] ^= 0xff

	if _, err := s.Open(sealed); err != ErrSealedDataCorrupt {
		t.Fatalf("expected ErrSealedDataCorrupt, got %v", err)
	}
}

func TestSealer_WrongKey(t *testing.T) {
	a, _ := NewSealer("secret-a")
	b, _ := NewSealer("secret-b")

	sealed, _ := a.Seal([]byte("payload"))
	if _, err := b.Open(sealed); err != ErrSealedDataCorrupt {
		t.Fatalf("expected ErrSealedDataCorrupt with wrong key, got %v", err)
	}
}

func TestSealer_EmptySecret(t *testing.T) {
	if _, err := NewSealer(""); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}
