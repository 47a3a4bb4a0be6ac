//go:build !linux && !darwin

package crypto

// mlock/munlock have no portable equivalent on this platform; treat locking
// memory as best-effort and silently unavailable rather than failing callers
// that don't actually check the error.
func lockMemory(b []byte) error   { return nil }
func unlockMemory(b []byte) error { return nil }
