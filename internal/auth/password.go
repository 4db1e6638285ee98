package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

const (
	scryptN   = 32768
	scryptR   = 8
	scryptP   = 1
	digestLen = 64
	saltLen   = 16
)

// HashPassword derives a salted scrypt digest and serializes it together with
// the salt as "hex(digest).hex(salt)".
func HashPassword(plaintext string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	digest, err := scrypt.Key([]byte(plaintext), salt, scryptN, scryptR, scryptP, digestLen)
	if err != nil {
		return "", fmt.Errorf("derive key: %w", err)
	}
	return hex.EncodeToString(digest) + "." + hex.EncodeToString(salt), nil
}

// VerifyPassword re-derives the digest with the embedded salt and compares in
// constant time. Any malformed stored form yields false, never a panic.
func VerifyPassword(plaintext, stored string) bool {
	parts := strings.Split(stored, ".")
	if len(parts) != 2 {
		return false
	}
	digest, err := hex.DecodeString(parts[0])
	if err != nil || len(digest) != digestLen {
		return false
	}
	salt, err := hex.DecodeString(parts[1])
	if err != nil || len(salt) == 0 {
		return false
	}
	derived, err := scrypt.Key([]byte(plaintext), salt, scryptN, scryptR, scryptP, digestLen)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(digest, derived) == 1
}
