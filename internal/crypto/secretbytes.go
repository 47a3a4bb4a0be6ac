package crypto

// SecretBytes holds secret byte material that must never leak a residual
// copy: it is wiped before its backing array is released, and Bytes is the
// only way to read it so callers can't accidentally alias it into a growable
// slice without going through Zero first.
type SecretBytes struct {
	b []byte
}

// NewSecretBytes takes ownership of b; the caller must not keep using b
// directly afterward.
func NewSecretBytes(b []byte) *SecretBytes {
	return &SecretBytes{b: b}
}

// Bytes returns the current contents. The returned slice aliases internal
// storage and must not outlive the SecretBytes.
func (s *SecretBytes) Bytes() []byte {
	if s == nil {
		return nil
	}
	return s.b
}

// Len reports the number of held bytes.
func (s *SecretBytes) Len() int {
	if s == nil {
		return 0
	}
	return len(s.b)
}

// Zero wipes the held bytes and drops the reference. Safe to call more than
// once and on a nil receiver.
func (s *SecretBytes) Zero() {
	if s == nil {
		return
	}
	Zero(s.b)
	s.b = nil
}

// Lock mlocks the backing storage so it cannot be paged to swap. Best effort;
// errors are not fatal since not every platform or memory limit supports it.
func (s *SecretBytes) Lock() error {
	if s == nil || len(s.b) == 0 {
		return nil
	}
	return lockMemory(s.b)
}

// Unlock reverses Lock.
func (s *SecretBytes) Unlock() error {
	if s == nil || len(s.b) == 0 {
		return nil
	}
	return unlockMemory(s.b)
}
