package crypto

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func TestEnvelopeEncryptDecryptRoundTrip(t *testing.T) {
	var master [KeySize]byte
	rand.Read(master[:])
	seed := DoubleHashOfBytes([]byte("a public key"))

	pt := []byte("a 32-byte private scalar.......")
	ct, err := EnvelopeEncrypt(master, pt, seed)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	got, err := EnvelopeDecrypt(master, ct, seed)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(pt, got) {
		t.Fatal("round trip mismatch")
	}
}

func TestEnvelopeIVDomainSeparation(t *testing.T) {
	var master [KeySize]byte
	rand.Read(master[:])
	pt := []byte("abandon ability able about above absent absorb")

	paperCT, err := EnvelopeEncrypt(master, pt, PaperKeyIVSeed())
	if err != nil {
		t.Fatalf("encrypt paper: %v", err)
	}
	pinCT, err := EnvelopeEncrypt(master, pt, PinCodeIVSeed())
	if err != nil {
		t.Fatalf("encrypt pin: %v", err)
	}
	if bytes.Equal(paperCT, pinCT) {
		t.Fatal("paper key and PIN code ciphertexts must differ under distinct IV domains")
	}
}

func TestDoubleHashOfStringEmptyIsZero(t *testing.T) {
	got := DoubleHashOfString("")
	want := [32]byte{}
	if got != want {
		t.Fatalf("expected all-zero hash for empty string, got %x", got)
	}
}

func TestDoubleHashOfStringNonEmpty(t *testing.T) {
	a := DoubleHashOfString("paperkey")
	b := DoubleHashOfString("pincode")
	if a == b {
		t.Fatal("expected distinct domain hashes")
	}
	if a == [32]byte{} || b == [32]byte{} {
		t.Fatal("non-empty input must not hash to the all-zero sentinel")
	}
}
