// Package keystore implements the encrypted key store core: the stateful,
// thread-safe façade that derives a master key from a passphrase, encrypts
// private keys, a paper key, and a PIN code under it, and gates access via
// lock/unlock. It delegates to an underlying plaintext store
// (keystore-core/internal/basicstore) whenever encryption has not been
// enabled, and otherwise never returns to plaintext mode.
package keystore

import (
	"log"
	"os"
	"sync"

	"keystore-core/internal/basicstore"
	cr "keystore-core/internal/crypto"
	"keystore-core/internal/keys"
)

type cryptedEntry struct {
	pub        keys.PubKey
	ciphertext []byte
}

// Store is the encrypted key store. The zero value is not usable; construct
// with New.
type Store struct {
	mu sync.Mutex

	useCrypto bool
	hasMaster bool
	masterKey [cr.KeySize]byte

	cryptedKeys map[[20]byte]cryptedEntry

	encryptedPaperKey []byte
	hasEncPaper       bool
	encryptedPinCode  []byte
	hasEncPin         bool

	thoroughlyChecked bool

	basic *basicstore.Store
	obs   *observers

	logger *log.Logger
}

// New creates an unencrypted key store backed by a fresh plaintext store.
func New() *Store {
	return &Store{
		cryptedKeys: make(map[[20]byte]cryptedEntry),
		basic:       basicstore.New(),
		obs:         newObservers(),
		logger:      log.Default(),
	}
}

// SetLogger overrides the default logger, matching the ambient convention
// of an injected *log.Logger rather than the bare global logger.
func (s *Store) SetLogger(l *log.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = l
}

// RegisterObserver subscribes to status-changed notifications, emitted on
// lock() and successful unlock() outside the critical section.
func (s *Store) RegisterObserver(f StatusChangedFunc) int {
	return s.obs.Register(f)
}

// UnregisterObserver cancels a previous subscription.
func (s *Store) UnregisterObserver(token int) {
	s.obs.Unregister(token)
}

// SetCrypted switches the store into crypted mode. Returns success if
// already crypted. Fails if the plaintext key map is non-empty: callers must
// migrate via EncryptKeys first.
func (s *Store) SetCrypted() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setCryptedLocked()
}

func (s *Store) setCryptedLocked() error {
	if s.useCrypto {
		return nil
	}
	if !s.basic.IsEmpty() {
		return ErrModeViolation
	}
	s.useCrypto = true
	return nil
}

// IsCrypted reports whether the store has ever been switched to crypted
// mode. Once true, it is never false again.
func (s *Store) IsCrypted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.useCrypto
}

// IsLocked reports whether the store is crypted but has no master key.
func (s *Store) IsLocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.useCrypto && !s.hasMaster
}

// Lock forces crypted mode, zeroizes and releases the master key, and emits
// a status-changed notification.
func (s *Store) Lock() {
	s.mu.Lock()
	_ = s.setCryptedLocked()
	cr.Zero(s.masterKey[:])
	s.hasMaster = false
	s.mu.Unlock()

	s.obs.notify(s)
}

// Unlock forces crypted mode and attempts to decrypt every stored key with
// candidateMasterKey. If some keys decrypt and others fail, the key store
// is structurally inconsistent and the process terminates rather than risk
// continuing with a corrupted wallet. If every attempt fails, or none are
// made, Unlock fails without altering state. Once thoroughlyChecked is set
// by a prior successful unlock, only the first key visited is tried.
func (s *Store) Unlock(candidateMasterKey [cr.KeySize]byte) error {
	s.mu.Lock()

	_ = s.setCryptedLocked()

	anyPass, anyFail := false, false
	for _, entry := range s.cryptedKeys {
		if _, err := keys.DecryptPrivateKey(candidateMasterKey, entry.ciphertext, entry.pub); err == nil {
			anyPass = true
		} else {
			anyFail = true
		}
		if s.thoroughlyChecked {
			break
		}
	}

	if anyPass && anyFail {
		s.mu.Unlock()
		s.fatalCorruption("some keys decrypted under the candidate master key and others did not")
		return ErrCipherFailure // unreachable: fatalCorruption terminates the process
	}

	if !anyPass {
		s.mu.Unlock()
		return ErrWrongPassphrase
	}

	s.masterKey = candidateMasterKey
	s.hasMaster = true
	s.thoroughlyChecked = true
	s.mu.Unlock()

	s.obs.notify(s)
	return nil
}

// SetMasterKey switches the store into crypted mode (if not already) and
// installs candidateMasterKey as the active master key directly, without
// requiring any existing encrypted key to validate it against first. Unlock
// cannot do this: on an empty key map it has nothing to decrypt and always
// fails, which is correct for reopening an existing wallet but leaves no way
// to establish the very first master key on a brand-new one. Callers that
// already know the key is fresh (right after EncryptKeys, or when creating a
// wallet with no keys at all) use this instead.
func (s *Store) SetMasterKey(candidateMasterKey [cr.KeySize]byte) error {
	s.mu.Lock()
	if err := s.setCryptedLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.masterKey = candidateMasterKey
	s.hasMaster = true
	s.thoroughlyChecked = true
	s.mu.Unlock()

	s.obs.notify(s)
	return nil
}

// fatalExit is a var so tests can override the termination behavior;
// production code always reaches os.Exit(1).
var fatalExit = func() { os.Exit(1) }

func (s *Store) fatalCorruption(reason string) {
	s.logger.Printf("keystore: fatal corruption detected, terminating: %s", reason)
	fatalExit()
}

// AddKeyPubKey adds a full key pair. If the store is not crypted, it
// delegates to the plaintext store. If crypted and locked, it fails.
func (s *Store) AddKeyPubKey(kp *keys.KeyPair) error {
	s.mu.Lock()
	if !s.useCrypto {
		s.mu.Unlock()
		s.basic.AddKeyPubKey(kp)
		return nil
	}
	if !s.hasMaster {
		s.mu.Unlock()
		return ErrLocked
	}
	ciphertext, err := keys.EncryptPrivateKey(s.masterKey, kp)
	if err != nil {
		s.mu.Unlock()
		return ErrCipherFailure
	}
	s.cryptedKeys[kp.PubKey().KeyID()] = cryptedEntry{pub: kp.PubKey(), ciphertext: ciphertext}
	s.useCrypto = true
	s.mu.Unlock()
	return nil
}

// AddCryptedKey inserts an already-encrypted key, forcing crypted mode.
func (s *Store) AddCryptedKey(pub keys.PubKey, ciphertext []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.useCrypto = true
	s.cryptedKeys[pub.KeyID()] = cryptedEntry{pub: pub, ciphertext: ciphertext}
	return nil
}

// GetKey retrieves a full key pair by key-id, decrypting it if the store is
// crypted and unlocked.
func (s *Store) GetKey(keyID [20]byte) (*keys.KeyPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.useCrypto {
		kp, err := s.basic.GetKey(keyID)
		if err != nil {
			return nil, ErrMissing
		}
		return kp, nil
	}
	if !s.hasMaster {
		return nil, ErrLocked
	}
	entry, ok := s.cryptedKeys[keyID]
	if !ok {
		return nil, ErrMissing
	}
	kp, err := keys.DecryptPrivateKey(s.masterKey, entry.ciphertext, entry.pub)
	if err != nil {
		return nil, ErrCipherFailure
	}
	return kp, nil
}

// GetPubKey retrieves a public key by key-id. When crypted, it consults the
// crypted map first, then falls back to the plaintext store's watch-only
// set (present in either mode).
func (s *Store) GetPubKey(keyID [20]byte) (keys.PubKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.useCrypto {
		pk, err := s.basic.GetPubKey(keyID)
		if err != nil {
			return keys.PubKey{}, ErrMissing
		}
		return pk, nil
	}
	if entry, ok := s.cryptedKeys[keyID]; ok {
		return entry.pub, nil
	}
	pk, err := s.basic.GetPubKey(keyID)
	if err != nil {
		return keys.PubKey{}, ErrMissing
	}
	return pk, nil
}

// EncryptKeys is the one-shot migration from plaintext to crypted mode. It
// builds the encrypted map from a copy of the plaintext key map first and
// only commits (clearing the plaintext map) if every entry encrypts
// successfully — failure partway through a live swap would leave the store
// in an inconsistent state, so construction happens off to the side.
func (s *Store) EncryptKeys(newMasterKey [cr.KeySize]byte) error {
	s.mu.Lock()
	if s.useCrypto {
		s.mu.Unlock()
		return ErrModeViolation
	}
	if len(s.cryptedKeys) != 0 {
		s.mu.Unlock()
		return ErrModeViolation
	}
	plain := s.basic.Keys()
	s.mu.Unlock()

	built := make(map[[20]byte]cryptedEntry, len(plain))
	for id, kp := range plain {
		ciphertext, err := keys.EncryptPrivateKey(newMasterKey, kp)
		if err != nil {
			// A valid 32-byte scalar encrypting under a valid key can only
			// fail here due to a broken cipher implementation: that is the
			// structural-inconsistency case the design treats as fatal.
			s.fatalCorruption("key failed to encrypt during EncryptKeys")
			return ErrCipherFailure
		}
		built[id] = cryptedEntry{pub: kp.PubKey(), ciphertext: ciphertext}
	}

	s.mu.Lock()
	s.useCrypto = true
	for id, entry := range built {
		s.cryptedKeys[id] = entry
	}
	s.mu.Unlock()

	s.basic.Clear()
	return nil
}
