package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
)

var (
	ErrKeyNotSet       = errors.New("crypto: crypter key not set")
	ErrBadKeySize      = errors.New("crypto: key must be 32 bytes")
	ErrBadIVSize       = errors.New("crypto: iv must be 16 bytes")
	ErrBadPlaintextLen = errors.New("crypto: plaintext too large to pad")
	ErrBadPadding      = errors.New("crypto: invalid PKCS7 padding")
	ErrBadCiphertext   = errors.New("crypto: ciphertext is not a multiple of the block size")
)

// Crypter holds a derived key and IV and performs AES-256-CBC with PKCS#7
// padding. It is the Go analog of the legacy CCrypter: stateful, and every
// exit path that can fail wipes key and iv first.
type Crypter struct {
	key    [KeySize]byte
	iv     [IVSize]byte
	keySet bool
}

// SetFromPassphrase runs the KDF and stores the resulting key and IV. On any
// failure the crypter is left with keySet == false and zeroed buffers.
func (c *Crypter) SetFromPassphrase(passphrase, salt []byte, rounds, method int) error {
	key, iv, err := DeriveKeyIV(passphrase, salt, rounds, method)
	if err != nil {
		c.wipe()
		return err
	}
	c.key = key
	c.iv = iv
	c.keySet = true
	return nil
}

// SetDirect copies a pre-derived key and IV.
func (c *Crypter) SetDirect(key [KeySize]byte, iv [IVSize]byte) {
	c.key = key
	c.iv = iv
	c.keySet = true
}

// Drop zeroizes the key and IV and marks the crypter unusable.
func (c *Crypter) Drop() {
	c.wipe()
}

func (c *Crypter) wipe() {
	Zero(c.key[:])
	Zero(c.iv[:])
	c.keySet = false
}

// Encrypt runs AES-256-CBC with PKCS#7 padding over plaintext. The output is
// always strictly longer than the input by 1..AESBlock bytes.
func (c *Crypter) Encrypt(plaintext []byte) ([]byte, error) {
	if !c.keySet {
		return nil, ErrKeyNotSet
	}
	block, err := aes.NewCipher(c.key[:])
	if err != nil {
		return nil, err
	}

	padded := pkcs7Pad(plaintext, AESBlock)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, c.iv[:]).CryptBlocks(out, padded)
	return out, nil
}

// Decrypt runs AES-256-CBC decryption and strips PKCS#7 padding. It fails if
// the ciphertext length is not a multiple of the block size or the padding
// is malformed.
func (c *Crypter) Decrypt(ciphertext []byte) ([]byte, error) {
	if !c.keySet {
		return nil, ErrKeyNotSet
	}
	if len(ciphertext) == 0 || len(ciphertext)%AESBlock != 0 {
		return nil, ErrBadCiphertext
	}
	block, err := aes.NewCipher(c.key[:])
	if err != nil {
		return nil, err
	}

	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, c.iv[:]).CryptBlocks(out, ciphertext)
	return pkcs7Unpad(out, AESBlock)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	n := len(data)
	if n == 0 || n%blockSize != 0 {
		return nil, ErrBadPadding
	}
	padLen := int(data[n-1])
	if padLen == 0 || padLen > blockSize || padLen > n {
		return nil, ErrBadPadding
	}
	for _, b := range data[n-padLen:] {
		if int(b) != padLen {
			return nil, ErrBadPadding
		}
	}
	return data[:n-padLen], nil
}
