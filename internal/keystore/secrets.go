package keystore

import cr "keystore-core/internal/crypto"

// AddPaperKey stores a mnemonic. If not crypted, it delegates to the
// plaintext mirror. If crypted and locked, it fails. The caller's buffer is
// wiped before this returns, whether or not the call succeeded.
func (s *Store) AddPaperKey(mnemonic []byte) error {
	defer cr.Zero(mnemonic)

	s.mu.Lock()
	if !s.useCrypto {
		s.mu.Unlock()
		s.basic.SetPaperKey(string(mnemonic))
		return nil
	}
	if !s.hasMaster {
		s.mu.Unlock()
		return ErrLocked
	}
	ciphertext, err := cr.EnvelopeEncrypt(s.masterKey, mnemonic, cr.PaperKeyIVSeed())
	if err != nil {
		s.mu.Unlock()
		return ErrCipherFailure
	}
	// Overwrites any existing ciphertext without warning; preserved
	// intentionally, matching the legacy wallet's own behavior.
	s.encryptedPaperKey = ciphertext
	s.hasEncPaper = true
	s.mu.Unlock()
	return nil
}

// AddPinCode stores a PIN code, mirroring AddPaperKey's contract.
func (s *Store) AddPinCode(pin []byte) error {
	defer cr.Zero(pin)

	s.mu.Lock()
	if !s.useCrypto {
		s.mu.Unlock()
		s.basic.SetPinCode(string(pin))
		return nil
	}
	if !s.hasMaster {
		s.mu.Unlock()
		return ErrLocked
	}
	ciphertext, err := cr.EnvelopeEncrypt(s.masterKey, pin, cr.PinCodeIVSeed())
	if err != nil {
		s.mu.Unlock()
		return ErrCipherFailure
	}
	s.encryptedPinCode = ciphertext
	s.hasEncPin = true
	s.mu.Unlock()
	return nil
}

// GetPaperKey returns the plaintext mnemonic: the plaintext mirror if one is
// present, otherwise an envelope-decrypt of the stored ciphertext. Fails if
// locked with no plaintext mirror.
func (s *Store) GetPaperKey() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getSecretLocked(s.basic.GetPaperKey, s.encryptedPaperKey, s.hasEncPaper, cr.PaperKeyIVSeed())
}

// GetPinCode mirrors GetPaperKey for the PIN code.
func (s *Store) GetPinCode() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getSecretLocked(s.basic.GetPinCode, s.encryptedPinCode, s.hasEncPin, cr.PinCodeIVSeed())
}

func (s *Store) getSecretLocked(mirror func() (string, bool), ciphertext []byte, hasCipher bool, ivSeed [32]byte) ([]byte, error) {
	if plain, ok := mirror(); ok {
		return []byte(plain), nil
	}
	if !s.useCrypto {
		return nil, ErrMissing
	}
	if !s.hasMaster {
		return nil, ErrLocked
	}
	if !hasCipher {
		return nil, ErrMissing
	}
	pt, err := cr.EnvelopeDecrypt(s.masterKey, ciphertext, ivSeed)
	if err != nil {
		return nil, ErrCipherFailure
	}
	return pt, nil
}

// EncryptPaperKey must run while unlocked. It obtains the current plaintext
// (from the mirror, or by decrypting under the current master key), clears
// the plaintext mirror without overwriting the string's bytes, and
// re-encrypts under newMasterKey.
func (s *Store) EncryptPaperKey(newMasterKey [cr.KeySize]byte) error {
	return s.reencryptSecret(newMasterKey, s.basic.GetPaperKey, s.basic.ClearPaperKey,
		&s.encryptedPaperKey, &s.hasEncPaper, cr.PaperKeyIVSeed())
}

// EncryptPinCode mirrors EncryptPaperKey for the PIN code.
func (s *Store) EncryptPinCode(newMasterKey [cr.KeySize]byte) error {
	return s.reencryptSecret(newMasterKey, s.basic.GetPinCode, s.basic.ClearPinCode,
		&s.encryptedPinCode, &s.hasEncPin, cr.PinCodeIVSeed())
}

func (s *Store) reencryptSecret(
	newMasterKey [cr.KeySize]byte,
	mirror func() (string, bool),
	clearMirror func(),
	ciphertext *[]byte,
	hasCipher *bool,
	ivSeed [32]byte,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.useCrypto && !s.hasMaster {
		return ErrLocked
	}

	var plain []byte
	if mirrorVal, ok := mirror(); ok {
		plain = []byte(mirrorVal)
	} else if *hasCipher && s.hasMaster {
		pt, err := cr.EnvelopeDecrypt(s.masterKey, *ciphertext, ivSeed)
		if err != nil {
			return ErrCipherFailure
		}
		plain = pt
	} else {
		return ErrMissing
	}
	defer cr.Zero(plain)

	newCiphertext, err := cr.EnvelopeEncrypt(newMasterKey, plain, ivSeed)
	if err != nil {
		return ErrCipherFailure
	}

	s.useCrypto = true
	*ciphertext = newCiphertext
	*hasCipher = true
	clearMirror()
	return nil
}

// DoubleHashOfString exposes the double-SHA256 contract used to build
// domain-separated IV seeds, matching the empty-string sentinel.
func (s *Store) DoubleHashOfString(str string) [32]byte {
	return cr.DoubleHashOfString(str)
}
