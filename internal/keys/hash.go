package keys

import (
	"crypto/sha256"

	"golang.org/x/crypto/ripemd160"
)

func sha256Of(b []byte) []byte {
	sum := sha256.Sum256(b)
	return sum[:]
}

func ripemd160Of(b []byte) []byte {
	h := ripemd160.New()
	h.Write(b)
	return h.Sum(nil)
}
