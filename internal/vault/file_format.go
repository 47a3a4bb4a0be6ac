package vault

import "keystore-core/internal/keystore"

type Header struct {
	Version int       `json:"version"`
	KDF     KDFHeader `json:"kdf"`
	VRKWrap []byte    `json:"vrk_wrap"` // AEAD_KEK(VRK||...)
	KDCipher []byte   `json:"kd_cipher"`// AEAD_VRK(KeyDirectory)
	Padding []byte    `json:"padding,omitempty"`
	Wallet  *WalletRecord `json:"wallet,omitempty"`
}

// PassphraseRecord is one legacy KDF parameter set wrapping the wallet's
// master key. The original format allows several, each independently
// re-deriving the same master key; this repo only ever populates one, but
// the slice shape leaves room for a future passphrase-rotation pair that
// adds a record without re-encrypting every secret.
type PassphraseRecord struct {
	Method int    `json:"method"`
	Salt   []byte `json:"salt"`
	Rounds int    `json:"rounds"`
}

// WalletRecord is the persisted form of a keystore.Store: the legacy
// passphrase-derivation parameters plus the exported crypted keys, paper
// key, and PIN code. A wallet-less item vault leaves this nil.
type WalletRecord struct {
	Passphrases []PassphraseRecord `json:"passphrases"`

	Keys    []keystore.KeyRecord   `json:"keys"`
	Secrets keystore.SecretsRecord `json:"secrets"`
}

type KDFHeader struct {
	Algo string `json:"algo"` // "argon2id"
	M    uint32 `json:"m"`
	T    uint32 `json:"t"`
	P    uint8  `json:"p"`
	Salt []byte `json:"salt"`
}

type KeyDirectory struct {
	Items   map[string]KDItem `json:"items"`
	Devices map[string]Device `json:"devices"`
	Policy  Policy            `json:"policy"`
}

type KDItem struct {
	DekWrap []byte `json:"dek_wrap"` // AEAD_VRK(DEK)
	MetaMAC []byte `json:"meta_mac,omitempty"`
}

type Device struct {
	ID         string `json:"id"`
	PubX25519  []byte `json:"pubX25519"`
	PubEd25519 []byte `json:"pubEd25519"`
}

// Item and queries (public API structs)
type Item struct {
	Type   string            `json:"type"`
	Fields map[string]string `json:"fields"`
}

type ItemMeta struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Updated int64  `json:"updated"`
	Version int    `json:"version"`
}

type Query struct {
	Type string // filter by type, optional
}
