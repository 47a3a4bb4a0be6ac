package keystore

import "errors"

// Error kinds named by the design: every operation returns a plain error
// rather than throwing, and secret out-parameters are left untouched on
// failure.
var (
	ErrBadParameters   = errors.New("keystore: bad parameters")
	ErrModeViolation   = errors.New("keystore: mode violation")
	ErrWrongPassphrase = errors.New("keystore: wrong passphrase")
	ErrMissing         = errors.New("keystore: not found")
	ErrCipherFailure   = errors.New("keystore: cipher operation failed")

	// ErrLocked refines ErrModeViolation for the common case of an
	// operation attempted on a crypted store with no master key present.
	ErrLocked = errors.New("keystore: store is locked")
)
