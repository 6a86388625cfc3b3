package common

import (
	"crypto/rand"
	"encoding/hex"
)

// MakeRandHexString reads size bytes from crypto/rand and returns them hex
// encoded, so the result is 2*size characters long. Session tokens use
// size 32 (256 bits).
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// GenerateRandByteArray returns size bytes from crypto/rand. It panics if
// the system random source fails, which crypto/rand documents as fatal.
func GenerateRandByteArray(size int) []byte {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}

// WipeByteArray zeroes b in place. Used for plaintext passwords read from
// the terminal.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
