// Package credential derives and verifies password digests. The stored shape is
// a (salt, hash) pair per account; callers must not assume a specific
// derivation algorithm.
package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltBytes  = 16
	iterations = 210_000
	keyLength  = 32
)

// NewSalt returns a fresh random salt, hex encoded.
func NewSalt() (string, error) {
	b := make([]byte, saltBytes)
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Hash derives a hex digest from the password and salt. Deterministic: the
// same inputs always yield the same digest.
func Hash(password, salt string) string {
	key := pbkdf2.Key([]byte(password), []byte(salt), iterations, keyLength, sha256.New)
	return hex.EncodeToString(key)
}

// Verify recomputes the digest and compares it in constant time. Returns false
// when no credentials are set.
func Verify(hash, salt, password string) bool {
	if hash == "" || salt == "" {
		return false
	}
	computed := Hash(password, salt)
	return subtle.ConstantTimeCompare([]byte(hash), []byte(computed)) == 1
}
