// Package credential contains the pure credential primitives: password
// hashing, session token generation and symmetric encryption of cached
// secrets. Nothing here touches storage.
package credential

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2 parameters. Verification must use exactly the same values as hashing.
const (
	Iterations = 10000
	KeyLength  = 64
	SaltLength = 16
)

// HashPassword derives the PBKDF2-HMAC-SHA512 hash of password with salt,
// hex-encoded.
func HashPassword(password, salt string) string {
	derived := pbkdf2.Key([]byte(password), []byte(salt), Iterations, KeyLength, sha512.New)
	return hex.EncodeToString(derived)
}

// VerifyPassword recomputes the hash and compares it in constant time.
// The comparison never exits early on the first differing byte.
func VerifyPassword(password, hash, salt string) bool {
	computed := HashPassword(password, salt)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}

// NewSalt returns a random hex salt.
func NewSalt() (string, error) {
	b := make([]byte, SaltLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// NewSessionToken returns 32 random bytes as 64 hex characters.
func NewSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
