package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// APIKeyPrefix tags every bearer key this system issues. Tokens without it
// are rejected before any hashing or database work.
const APIKeyPrefix = "grag_"

// apiKeyDisplayLen is how many leading characters of a key are kept as its
// displayable prefix.
const apiKeyDisplayLen = 12

// HashAPIKey returns the SHA-256 hex digest of a bearer key. Deterministic;
// this digest, never the plaintext, is stored and used for lookups.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// GenerateAPIKey mints a new bearer key and returns the plaintext key, its
// lookup hash, and its displayable prefix. The plaintext is shown to the
// owner once and never persisted.
func GenerateAPIKey() (key, hash, prefix string, err error) {
	random := make([]byte, 16)
	if _, errRead := io.ReadFull(rand.Reader, random); errRead != nil {
		return "", "", "", fmt.Errorf("crypto: read key material: %w", errRead)
	}
	key = APIKeyPrefix + hex.EncodeToString(random)
	return key, HashAPIKey(key), key[:apiKeyDisplayLen], nil
}
