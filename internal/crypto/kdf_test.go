package crypto

import (
	"bytes"
	"crypto/sha512"
	"testing"
)

func TestDeriveKeyIVDeterministic(t *testing.T) {
	salt := []byte{0, 1, 2, 3, 4, 5, 6, 7}
	k1, v1, err := DeriveKeyIV([]byte("correct horse"), salt, 3, MethodLegacySHA512AES)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	k2, v2, err := DeriveKeyIV([]byte("correct horse"), salt, 3, MethodLegacySHA512AES)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if k1 != k2 || v1 != v2 {
		t.Fatal("derivation is not reproducible")
	}
}

// TestDeriveKeyIVVector is the published test vector: passphrase "test",
// salt 0x0001020304050607, count 1. The derived key and IV must be the first
// 48 bytes of SHA-512(passphrase || salt), split 32/16.
func TestDeriveKeyIVVector(t *testing.T) {
	passphrase := []byte("test")
	salt := []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07}

	key, iv, err := DeriveKeyIV(passphrase, salt, 1, MethodLegacySHA512AES)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}

	want := sha512.Sum512(append(append([]byte{}, passphrase...), salt...))
	if !bytes.Equal(key[:], want[0:32]) {
		t.Fatalf("key mismatch: got %x want %x", key, want[0:32])
	}
	if !bytes.Equal(iv[:], want[32:48]) {
		t.Fatalf("iv mismatch: got %x want %x", iv, want[32:48])
	}
}

func TestDeriveKeyIVRoundsChangeOutput(t *testing.T) {
	salt := []byte{0, 1, 2, 3, 4, 5, 6, 7}
	k1, _, err := DeriveKeyIV([]byte("p"), salt, 1, MethodLegacySHA512AES)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	k2, _, err := DeriveKeyIV([]byte("p"), salt, 2, MethodLegacySHA512AES)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if k1 == k2 {
		t.Fatal("expected different keys for different round counts")
	}
}

func TestDeriveKeyIVRejectsBadInputs(t *testing.T) {
	goodSalt := []byte{0, 1, 2, 3, 4, 5, 6, 7}
	if _, _, err := DeriveKeyIV([]byte("p"), []byte{1, 2, 3}, 1, MethodLegacySHA512AES); err != ErrBadSaltSize {
		t.Fatalf("expected ErrBadSaltSize, got %v", err)
	}
	if _, _, err := DeriveKeyIV([]byte("p"), goodSalt, 0, MethodLegacySHA512AES); err != ErrBadRounds {
		t.Fatalf("expected ErrBadRounds, got %v", err)
	}
	if _, _, err := DeriveKeyIV([]byte("p"), goodSalt, 1, 1); err != ErrUnknownMethod {
		t.Fatalf("expected ErrUnknownMethod, got %v", err)
	}
}
