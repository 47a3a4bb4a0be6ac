package crypto

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func TestCrypterEncryptDecryptRoundTrip(t *testing.T) {
	var key [KeySize]byte
	var iv [IVSize]byte
	rand.Read(key[:])
	rand.Read(iv[:])

	var c Crypter
	c.SetDirect(key, iv)

	pt := randBytes(t, 100)
	ct, err := c.Encrypt(pt)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	got, err := c.Decrypt(ct)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(pt, got) {
		t.Fatal("round trip mismatch")
	}
}

func TestCrypterCiphertextLength(t *testing.T) {
	var key [KeySize]byte
	var iv [IVSize]byte
	var c Crypter
	c.SetDirect(key, iv)

	pt := make([]byte, 32)
	ct, err := c.Encrypt(pt)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if len(ct) != 48 {
		t.Fatalf("expected 48-byte ciphertext for 32-byte plaintext, got %d", len(ct))
	}
}

func TestCrypterWrongKeyFails(t *testing.T) {
	var key1, key2 [KeySize]byte
	var iv [IVSize]byte
	rand.Read(key1[:])
	rand.Read(key2[:])

	var enc Crypter
	enc.SetDirect(key1, iv)
	ct, err := enc.Encrypt([]byte("private key bytes go here......"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	var dec Crypter
	dec.SetDirect(key2, iv)
	if pt, err := dec.Decrypt(ct); err == nil {
		if string(pt) == "private key bytes go here......" {
			t.Fatal("decrypting under the wrong key must not recover the plaintext")
		}
	}
}

func TestCrypterOperationsFailWithoutKey(t *testing.T) {
	var c Crypter
	if _, err := c.Encrypt([]byte("x")); err != ErrKeyNotSet {
		t.Fatalf("expected ErrKeyNotSet, got %v", err)
	}
	if _, err := c.Decrypt([]byte("0123456789abcdef")); err != ErrKeyNotSet {
		t.Fatalf("expected ErrKeyNotSet, got %v", err)
	}
}

func TestCrypterSetFromPassphraseFailureWipesState(t *testing.T) {
	var c Crypter
	err := c.SetFromPassphrase([]byte("p"), []byte("tooshort"[:3]), 1, MethodLegacySHA512AES)
	if err == nil {
		t.Fatal("expected failure for bad salt length")
	}
	if _, encErr := c.Encrypt([]byte("x")); encErr != ErrKeyNotSet {
		t.Fatalf("expected crypter to remain unset after failed derivation, got %v", encErr)
	}
}

func TestCrypterDropWipesKeyAndIV(t *testing.T) {
	var key [KeySize]byte
	var iv [IVSize]byte
	rand.Read(key[:])
	rand.Read(iv[:])

	var c Crypter
	c.SetDirect(key, iv)
	c.Drop()

	if _, err := c.Encrypt([]byte("x")); err != ErrKeyNotSet {
		t.Fatalf("expected ErrKeyNotSet after Drop, got %v", err)
	}
}
