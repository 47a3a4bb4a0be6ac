package crypto

import "crypto/sha256"

// EnvelopeEncrypt builds a one-shot Crypter keyed by masterKey and the first
// IVSize bytes of ivSeed, then encrypts plaintext. This is the legacy,
// unauthenticated envelope format: no framing, no tag, no version byte.
func EnvelopeEncrypt(masterKey [KeySize]byte, plaintext []byte, ivSeed [32]byte) ([]byte, error) {
	var iv [IVSize]byte
	copy(iv[:], ivSeed[:IVSize])

	var c Crypter
	c.SetDirect(masterKey, iv)
	defer c.Drop()
	return c.Encrypt(plaintext)
}

// EnvelopeDecrypt is the symmetric inverse of EnvelopeEncrypt.
func EnvelopeDecrypt(masterKey [KeySize]byte, ciphertext []byte, ivSeed [32]byte) ([]byte, error) {
	var iv [IVSize]byte
	copy(iv[:], ivSeed[:IVSize])

	var c Crypter
	c.SetDirect(masterKey, iv)
	defer c.Drop()
	return c.Decrypt(ciphertext)
}

// DoubleHashOfBytes is SHA-256(SHA-256(b)). Used to build IV seeds for
// private-key ciphertexts (seed = DoubleHashOfBytes(pubkey serialization))
// and is distinct from the 160-bit key-id used to index stored keys.
func DoubleHashOfBytes(b []byte) [32]byte {
	first := sha256.Sum256(b)
	return sha256.Sum256(first[:])
}

// DoubleHashOfString is SHA-256(SHA-256(s)), except that the empty string
// maps to the all-zero 256-bit value by contract rather than by coincidence
// of the hash function.
func DoubleHashOfString(s string) [32]byte {
	if s == "" {
		return [32]byte{}
	}
	return DoubleHashOfBytes([]byte(s))
}

// Domain labels for the fixed, non-key IV seeds. Lengths are part of the
// external interface: "paperkey" is 8 ASCII bytes, "pincode" is 7.
const (
	paperKeyDomainLabel = "paperkey"
	pinCodeDomainLabel  = "pincode"
)

// PaperKeyIVSeed and PinCodeIVSeed are the fixed, domain-separated IV seeds
// for the paper key and PIN code envelopes.
func PaperKeyIVSeed() [32]byte { return DoubleHashOfString(paperKeyDomainLabel) }
func PinCodeIVSeed() [32]byte  { return DoubleHashOfString(pinCodeDomainLabel) }
