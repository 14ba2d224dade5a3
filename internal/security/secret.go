// Package security provides per-device secret key generation and the
// constant-time comparisons used by the device and admin auth middleware.
package security

import (
	"crypto/rand"
	"crypto/subtle"
	"regexp"
)

const secretKeyAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
const secretKeyLength = 10

var secretKeyPattern = regexp.MustCompile(`^[a-z0-9]{10}$`)

// GenerateSecretKey returns a fresh 10-character lowercase alphanumeric
// secret key, matching the shape the appliance itself emits over BLE.
func GenerateSecretKey() (string, error) {
	buf := make([]byte, secretKeyLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, secretKeyLength)
	for i, b := range buf {
		out[i] = secretKeyAlphabet[int(b)%len(secretKeyAlphabet)]
	}
	return string(out), nil
}

// ValidSecretKey reports whether key matches the required shape:
// exactly 10 characters, lowercase a-z and 0-9.
func ValidSecretKey(key string) bool {
	return secretKeyPattern.MatchString(key)
}

// ConstantTimeEquals compares two secrets without leaking timing
// information about the point of mismatch.
func ConstantTimeEquals(a, b string) bool {
	if len(a) != len(b) {
		// Still perform a comparison so callers can't distinguish a
		// length mismatch from a content mismatch by timing.
		subtle.ConstantTimeCompare([]byte(a), []byte(a))
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
