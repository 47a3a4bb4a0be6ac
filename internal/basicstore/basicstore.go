// Package basicstore implements the plaintext ("basic") key store that the
// encrypted key store delegates to when encryption has not been enabled. It
// owns its own mutex so that the encrypted store's methods never need to
// re-enter a single shared lock: the encrypted store takes its own lock,
// calls into the basic store (which takes its own, independent lock), and
// releases it before returning.
package basicstore

import (
	"errors"
	"sync"

	"keystore-core/internal/keys"
)

var (
	ErrMissing = errors.New("basicstore: not found")
)

// Store is the plaintext fallback: a key-id indexed map of full key pairs,
// plaintext mirrors of the paper key and PIN code, and a watch-only set of
// public keys with no corresponding private key.
type Store struct {
	mu sync.Mutex

	keyMap    map[[20]byte]*keys.KeyPair
	watchOnly map[[20]byte]keys.PubKey

	paperKey string
	hasPaper bool
	pinCode  string
	hasPin   bool
}

func New() *Store {
	return &Store{
		keyMap:    make(map[[20]byte]*keys.KeyPair),
		watchOnly: make(map[[20]byte]keys.PubKey),
	}
}

// AddKeyPubKey inserts a full key pair, indexed by the public key's key-id.
func (s *Store) AddKeyPubKey(kp *keys.KeyPair) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keyMap[kp.PubKey().KeyID()] = kp
}

// GetKey looks up a full key pair by key-id.
func (s *Store) GetKey(keyID [20]byte) (*keys.KeyPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kp, ok := s.keyMap[keyID]
	if !ok {
		return nil, ErrMissing
	}
	return kp, nil
}

// GetPubKey looks up a public key by key-id, consulting full key pairs first
// and falling back to the watch-only set.
func (s *Store) GetPubKey(keyID [20]byte) (keys.PubKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if kp, ok := s.keyMap[keyID]; ok {
		return kp.PubKey(), nil
	}
	if pk, ok := s.watchOnly[keyID]; ok {
		return pk, nil
	}
	return keys.PubKey{}, ErrMissing
}

// AddWatchOnly inserts a public key with no corresponding private key.
func (s *Store) AddWatchOnly(pub keys.PubKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchOnly[pub.KeyID()] = pub
}

// IsEmpty reports whether the key map holds any full key pairs. The
// encrypted store refuses to switch modes unless this is true.
func (s *Store) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keyMap) == 0
}

// Keys returns a copy of the current key map without clearing it, used by
// the one-shot plaintext-to-encrypted migration to build the encrypted map
// before committing to the switch.
func (s *Store) Keys() map[[20]byte]*keys.KeyPair {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[[20]byte]*keys.KeyPair, len(s.keyMap))
	for k, v := range s.keyMap {
		out[k] = v
	}
	return out
}

// Clear empties the key map. Called only after every entry has been
// successfully migrated into the encrypted map.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keyMap = make(map[[20]byte]*keys.KeyPair)
}

// SetPaperKey stores the plaintext mnemonic mirror.
func (s *Store) SetPaperKey(mnemonic string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paperKey = mnemonic
	s.hasPaper = true
}

// GetPaperKey returns the plaintext mnemonic mirror, if present.
func (s *Store) GetPaperKey() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paperKey, s.hasPaper
}

// ClearPaperKey clears the plaintext mirror. The old string's bytes are not
// overwritten.
func (s *Store) ClearPaperKey() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paperKey = ""
	s.hasPaper = false
}

// SetPinCode stores the plaintext PIN mirror.
func (s *Store) SetPinCode(pin string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pinCode = pin
	s.hasPin = true
}

// GetPinCode returns the plaintext PIN mirror, if present.
func (s *Store) GetPinCode() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pinCode, s.hasPin
}

// ClearPinCode clears the plaintext mirror. The old string's bytes are not
// overwritten.
func (s *Store) ClearPinCode() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pinCode = ""
	s.hasPin = false
}
