package keys

import (
	"bytes"
	"crypto/rand"
	"testing"

	cr "keystore-core/internal/crypto"
)

func TestFromScalarReproducesPubKey(t *testing.T) {
	kp, err := Generate(true)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	kp2, err := FromScalar(kp.Scalar(), true)
	if err != nil {
		t.Fatalf("from scalar: %v", err)
	}
	if !kp.PubKey().Equal(kp2.PubKey()) {
		t.Fatal("reconstructed key pair has a different public key")
	}
}

func TestPubKeySerializationRoundTrip(t *testing.T) {
	for _, compressed := range []bool{true, false} {
		kp, err := Generate(compressed)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		b := kp.PubKey().Bytes()
		parsed, err := ParsePubKey(b)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if !parsed.Equal(kp.PubKey()) {
			t.Fatal("parsed public key does not match original")
		}
		if parsed.Compressed != compressed {
			t.Fatalf("expected compressed=%v, got %v", compressed, parsed.Compressed)
		}
	}
}

func TestKeyIDStableAndDistinct(t *testing.T) {
	kp1, _ := Generate(true)
	kp2, _ := Generate(true)
	id1 := kp1.PubKey().KeyID()
	id1Again := kp1.PubKey().KeyID()
	id2 := kp2.PubKey().KeyID()
	if id1 != id1Again {
		t.Fatal("KeyID must be deterministic")
	}
	if id1 == id2 {
		t.Fatal("distinct keys must have distinct key ids with overwhelming probability")
	}
}

func TestEncryptDecryptPrivateKeyRoundTrip(t *testing.T) {
	var master [cr.KeySize]byte
	rand.Read(master[:])

	kp, err := Generate(true)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	ct, err := EncryptPrivateKey(master, kp)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	got, err := DecryptPrivateKey(master, ct, kp.PubKey())
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(got.Scalar(), kp.Scalar()) {
		t.Fatal("decrypted scalar mismatch")
	}
}

func TestDecryptPrivateKeyWrongMasterFails(t *testing.T) {
	var master, other [cr.KeySize]byte
	rand.Read(master[:])
	rand.Read(other[:])

	kp, _ := Generate(true)
	ct, err := EncryptPrivateKey(master, kp)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := DecryptPrivateKey(other, ct, kp.PubKey()); err == nil {
		t.Fatal("expected decryption under the wrong master key to fail")
	}
}
