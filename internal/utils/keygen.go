package utils

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateSecret returns n random bytes hex encoded.
// Used for the bootstrap admin password when none is configured.
func GenerateSecret(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// MaskUsername hides all but the first two characters of a login.
func MaskUsername(s string) string {
	r := []rune(s)
	if len(r) <= 2 {
		return string(r) + "***"
	}
	return string(r[:2]) + "***"
}
