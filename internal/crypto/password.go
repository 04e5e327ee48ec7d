package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// Password hashing parameters. The salt travels inside the encoded hash but
// the iteration count does not; changing it breaks verification of every
// stored hash, so it stays fixed.
const (
	passwordSaltSize   = 16
	passwordKeySize    = 32
	passwordIterations = 100_000
)

// HashPassword derives a salted PBKDF2-SHA256 digest for storage.
//
// A fresh random salt is drawn per call, so hashing the same password twice
// yields different outputs. The result is base64(salt || derived key).
func HashPassword(password string) (string, error) {
	salt := make([]byte, passwordSaltSize)
	if _, errRead := io.ReadFull(rand.Reader, salt); errRead != nil {
		return "", fmt.Errorf("crypto: read salt: %w", errRead)
	}
	derived := pbkdf2.Key([]byte(password), salt, passwordIterations, passwordKeySize, sha256.New)
	return base64.StdEncoding.EncodeToString(append(salt, derived...)), nil
}

// VerifyPassword reports whether password matches the stored digest.
// Comparison is constant-time.
func VerifyPassword(password, encoded string) bool {
	raw, errDecode := base64.StdEncoding.DecodeString(encoded)
	if errDecode != nil || len(raw) != passwordSaltSize+passwordKeySize {
		return false
	}
	salt := raw[:passwordSaltSize]
	derived := pbkdf2.Key([]byte(password), salt, passwordIterations, passwordKeySize, sha256.New)
	return subtle.ConstantTimeCompare(derived, raw[passwordSaltSize:]) == 1
}
