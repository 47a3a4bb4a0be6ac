package platform

import (
	"fmt"

	"github.com/99designs/keyring"
)

// Keychain stores and retrieves raw secret bytes in whatever OS-native
// secret store is available (macOS Keychain, the Secret Service on Linux
// via libsecret, Windows Credential Manager, or an encrypted file
// fallback). walletctl uses it to cache a vault's master password so later
// commands can run without a passphrase prompt.
type Keychain interface {
	Store(keyID string, secret []byte) error
	Load(keyID string) ([]byte, error)
	Delete(keyID string) error
}

type ringKeychain struct {
	ring keyring.Keyring
}

// NewKeychain opens the OS-native keyring under a fixed service name.
func NewKeychain() (Keychain, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: "keystore-core",
	})
	if err != nil {
		return nil, fmt.Errorf("platform: open keyring: %w", err)
	}
	return &ringKeychain{ring: ring}, nil
}

func (k *ringKeychain) Store(keyID string, secret []byte) error {
	err := k.ring.Set(keyring.Item{
		Key:  keyID,
		Data: secret,
	})
	if err != nil {
		return fmt.Errorf("platform: store %q: %w", keyID, err)
	}
	return nil
}

func (k *ringKeychain) Load(keyID string) ([]byte, error) {
	item, err := k.ring.Get(keyID)
	if err != nil {
		return nil, fmt.Errorf("platform: load %q: %w", keyID, err)
	}
	return item.Data, nil
}

func (k *ringKeychain) Delete(keyID string) error {
	if err := k.ring.Remove(keyID); err != nil {
		return fmt.Errorf("platform: delete %q: %w", keyID, err)
	}
	return nil
}
