package keystore

import (
	cr "keystore-core/internal/crypto"
	"keystore-core/internal/keys"
)

// KeyRecord is the on-disk representation of one crypted key: a serialized
// public key alongside its envelope ciphertext. Callers that persist a Store
// (internal/vault, via internal/storage) round-trip through these records
// rather than reaching into the Store's internal map.
type KeyRecord struct {
	PubKey     []byte
	Ciphertext []byte
}

// ExportCryptedKeys snapshots every crypted key as a KeyRecord, for
// persistence. It does not require the store to be unlocked.
func (s *Store) ExportCryptedKeys() []KeyRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]KeyRecord, 0, len(s.cryptedKeys))
	for _, entry := range s.cryptedKeys {
		out = append(out, KeyRecord{PubKey: entry.pub.Bytes(), Ciphertext: entry.ciphertext})
	}
	return out
}

// ImportCryptedKey restores one previously exported KeyRecord, forcing
// crypted mode. Used when loading a persisted store from disk.
func (s *Store) ImportCryptedKey(rec KeyRecord) error {
	pub, err := keys.ParsePubKey(rec.PubKey)
	if err != nil {
		return ErrBadParameters
	}
	return s.AddCryptedKey(pub, rec.Ciphertext)
}

// SecretsRecord is the on-disk representation of the encrypted paper key and
// PIN code envelopes, exported as a pair so an empty slot is distinguishable
// from a present-but-unset one.
type SecretsRecord struct {
	HasPaperKey       bool
	EncryptedPaperKey []byte
	HasPinCode        bool
	EncryptedPinCode  []byte
}

// ExportSecrets snapshots the encrypted paper key and PIN code envelopes.
func (s *Store) ExportSecrets() SecretsRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SecretsRecord{
		HasPaperKey:       s.hasEncPaper,
		EncryptedPaperKey: append([]byte(nil), s.encryptedPaperKey...),
		HasPinCode:        s.hasEncPin,
		EncryptedPinCode:  append([]byte(nil), s.encryptedPinCode...),
	}
}

// ImportSecrets restores a previously exported SecretsRecord, forcing
// crypted mode.
func (s *Store) ImportSecrets(rec SecretsRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.useCrypto = true
	if rec.HasPaperKey {
		s.encryptedPaperKey = rec.EncryptedPaperKey
		s.hasEncPaper = true
	}
	if rec.HasPinCode {
		s.encryptedPinCode = rec.EncryptedPinCode
		s.hasEncPin = true
	}
}

// Rekey re-encrypts every crypted key, the paper key, and the PIN code under
// newMasterKey. The store must already be unlocked under the current master
// key. Like EncryptKeys, the new crypted map is built off to the side and
// only swapped in once every entry succeeds; a failure partway through is
// the same structural-inconsistency case Unlock treats as fatal, since it
// would otherwise mean some secrets rotate and others silently don't.
func (s *Store) Rekey(newMasterKey [cr.KeySize]byte) error {
	s.mu.Lock()
	if !s.useCrypto || !s.hasMaster {
		s.mu.Unlock()
		return ErrLocked
	}
	oldMasterKey := s.masterKey
	entries := make([]cryptedEntry, 0, len(s.cryptedKeys))
	for _, e := range s.cryptedKeys {
		entries = append(entries, e)
	}
	s.mu.Unlock()

	rebuilt := make(map[[20]byte]cryptedEntry, len(entries))
	for _, e := range entries {
		kp, err := keys.DecryptPrivateKey(oldMasterKey, e.ciphertext, e.pub)
		if err != nil {
			s.fatalCorruption("key failed to decrypt under the current master key during Rekey")
			return ErrCipherFailure
		}
		ciphertext, err := keys.EncryptPrivateKey(newMasterKey, kp)
		if err != nil {
			s.fatalCorruption("key failed to encrypt under the new master key during Rekey")
			return ErrCipherFailure
		}
		rebuilt[e.pub.KeyID()] = cryptedEntry{pub: e.pub, ciphertext: ciphertext}
	}

	if err := s.EncryptPaperKey(newMasterKey); err != nil && err != ErrMissing {
		return err
	}
	if err := s.EncryptPinCode(newMasterKey); err != nil && err != ErrMissing {
		return err
	}

	s.mu.Lock()
	s.cryptedKeys = rebuilt
	s.masterKey = newMasterKey
	s.mu.Unlock()
	return nil
}
