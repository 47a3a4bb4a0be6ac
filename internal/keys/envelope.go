package keys

import (
	"errors"

	cr "keystore-core/internal/crypto"
)

var ErrPubKeyMismatch = errors.New("keys: decrypted scalar does not reproduce the stored public key")

// DecryptPrivateKey ties crypto and keys together: decrypt the stored
// ciphertext under masterKey with an IV seed derived from pub's serialization,
// reconstruct a KeyPair from the 32-byte scalar, and verify it reproduces pub
// exactly. A wrong master key almost always fails here even though CBC itself
// carries no authentication tag.
func DecryptPrivateKey(masterKey [cr.KeySize]byte, ciphertext []byte, pub PubKey) (*KeyPair, error) {
	seed := cr.DoubleHashOfBytes(pub.Bytes())
	secret, err := cr.EnvelopeDecrypt(masterKey, ciphertext, seed)
	if err != nil {
		return nil, err
	}
	defer cr.Zero(secret)

	if len(secret) != ScalarSize {
		return nil, ErrBadScalar
	}
	kp, err := FromScalar(secret, pub.Compressed)
	if err != nil {
		return nil, err
	}
	if !kp.PubKey().Equal(pub) {
		return nil, ErrPubKeyMismatch
	}
	return kp, nil
}

// EncryptPrivateKey is the inverse helper used by AddKeyPubKey: envelope-
// encrypt a key pair's scalar under masterKey with an IV seed derived from
// its own public key.
func EncryptPrivateKey(masterKey [cr.KeySize]byte, kp *KeyPair) ([]byte, error) {
	seed := cr.DoubleHashOfBytes(kp.PubKey().Bytes())
	return cr.EnvelopeEncrypt(masterKey, kp.Scalar(), seed)
}
