// Package keys implements the abstract KeyPair/PubKey capability that the
// key store consumes but does not specify: derivation of a public key from a
// private scalar, and a serialization format with an explicit compressed
// flag, as required by the legacy envelope's integrity check.
package keys

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"math/big"
)

var curve = elliptic.P256()

// ScalarSize is the length of a private key's raw scalar bytes, matching the
// 32-byte private scalar the legacy envelope encrypts.
const ScalarSize = 32

var (
	ErrBadScalar     = errors.New("keys: private scalar out of range")
	ErrBadPubKeyBlob = errors.New("keys: malformed public key bytes")
)

// KeyPair is a private key together with the public key it derives.
type KeyPair struct {
	priv       *ecdsa.PrivateKey
	compressed bool
}

// PubKey is the serializable public half, carrying its own compressed flag
// since the same curve point can be serialized either way.
type PubKey struct {
	X, Y       *big.Int
	Compressed bool
}

// Generate creates a fresh random key pair.
func Generate(compressed bool) (*KeyPair, error) {
	priv, err := ecdsa.GenerateKey(curve, rand.Reader)
	if err != nil {
		return nil, err
	}
	return &KeyPair{priv: priv, compressed: compressed}, nil
}

// FromScalar reconstructs a KeyPair from a raw 32-byte private scalar and the
// compressed flag under which its public key should be serialized. This is
// the step the legacy envelope's DecryptPrivateKey performs after decrypting
// a stored ciphertext.
func FromScalar(scalar []byte, compressed bool) (*KeyPair, error) {
	if len(scalar) != ScalarSize {
		return nil, ErrBadScalar
	}
	d := new(big.Int).SetBytes(scalar)
	if d.Sign() <= 0 || d.Cmp(curve.Params().N) >= 0 {
		return nil, ErrBadScalar
	}
	x, y := curve.ScalarBaseMult(scalar)
	priv := &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{Curve: curve, X: x, Y: y},
		D:         d,
	}
	return &KeyPair{priv: priv, compressed: compressed}, nil
}

// Scalar returns the raw 32-byte private scalar.
func (kp *KeyPair) Scalar() []byte {
	b := kp.priv.D.Bytes()
	if len(b) == ScalarSize {
		return b
	}
	out := make([]byte, ScalarSize)
	copy(out[ScalarSize-len(b):], b)
	return out
}

// PubKey returns the serializable public half.
func (kp *KeyPair) PubKey() PubKey {
	return PubKey{X: kp.priv.X, Y: kp.priv.Y, Compressed: kp.compressed}
}

// Bytes serializes the public key per its compressed flag.
func (p PubKey) Bytes() []byte {
	if p.Compressed {
		return elliptic.MarshalCompressed(curve, p.X, p.Y)
	}
	return elliptic.Marshal(curve, p.X, p.Y)
}

// ParsePubKey parses either compressed or uncompressed serialization,
// inferring the compressed flag from the leading byte as the legacy format
// does (0x02/0x03 compressed, 0x04 uncompressed).
func ParsePubKey(b []byte) (PubKey, error) {
	if len(b) == 0 {
		return PubKey{}, ErrBadPubKeyBlob
	}
	switch b[0] {
	case 0x02, 0x03:
		x, y := elliptic.UnmarshalCompressed(curve, b)
		if x == nil {
			return PubKey{}, ErrBadPubKeyBlob
		}
		return PubKey{X: x, Y: y, Compressed: true}, nil
	case 0x04:
		x, y := elliptic.Unmarshal(curve, b)
		if x == nil {
			return PubKey{}, ErrBadPubKeyBlob
		}
		return PubKey{X: x, Y: y, Compressed: false}, nil
	default:
		return PubKey{}, ErrBadPubKeyBlob
	}
}

// Equal reports whether two public keys represent the same curve point,
// independent of which serialization (compressed/uncompressed) was used.
func (p PubKey) Equal(other PubKey) bool {
	if p.X == nil || p.Y == nil || other.X == nil || other.Y == nil {
		return false
	}
	return p.X.Cmp(other.X) == 0 && p.Y.Cmp(other.Y) == 0
}

// KeyID is the 160-bit hash used to index stored secrets: RIPEMD-160 of
// SHA-256 of the public key's serialized bytes, matching the construction
// named in the glossary.
func (p PubKey) KeyID() [20]byte {
	b := p.Bytes()
	h := ripemd160Of(sha256Of(b))
	var out [20]byte
	copy(out[:], h)
	return out
}
