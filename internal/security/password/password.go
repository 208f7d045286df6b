// Package password derives and verifies salted PBKDF2 password hashes.
package password

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	Iterations = 1000
	KeyLength  = 64
	SaltLength = 16
)

// NewSalt returns SaltLength random bytes, hex encoded
func NewSalt() (string, error) {
	buf := make([]byte, SaltLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Hash derives the hex PBKDF2-HMAC-SHA512 digest of password with salt
func Hash(password, salt string) string {
	key := pbkdf2.Key([]byte(password), []byte(salt), Iterations, KeyLength, sha512.New)
	return hex.EncodeToString(key)
}

// Verify reports whether password matches the stored hash, in constant time
func Verify(password, salt, hash string) bool {
	computed := Hash(password, salt)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}

// HashNew generates a fresh salt and returns it with the derived hash
func HashNew(password string) (hash, salt string, err error) {
	salt, err = NewSalt()
	if err != nil {
		return "", "", err
	}
	return Hash(password, salt), salt, nil
}
