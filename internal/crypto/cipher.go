package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// ErrDecrypt indicates the blob could not be decrypted: wrong key, truncated
// data, or a failed integrity check. Callers must not surface cipher detail.
var ErrDecrypt = errors.New("crypto: decryption failed")

const gcmNonceSize = 12

// deriveKey stretches an arbitrary key string into a 32-byte AES key.
func deriveKey(key string) []byte {
	sum := sha256.Sum256([]byte(key))
	return sum[:]
}

// Encrypt seals plaintext with AES-256-GCM under the given key string.
//
// Each call draws a fresh random nonce, so identical plaintexts yield
// different blobs. The blob is base64(nonce || ciphertext || tag).
func Encrypt(plaintext, key string) (string, error) {
	block, errCipher := aes.NewCipher(deriveKey(key))
	if errCipher != nil {
		return "", fmt.Errorf("crypto: new cipher: %w", errCipher)
	}
	gcm, errGCM := cipher.NewGCM(block)
	if errGCM != nil {
		return "", fmt.Errorf("crypto: new gcm: %w", errGCM)
	}

	nonce := make([]byte, gcmNonceSize)
	if _, errRead := io.ReadFull(rand.Reader, nonce); errRead != nil {
		return "", fmt.Errorf("crypto: read nonce: %w", errRead)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a blob produced by Encrypt. The nonce travels inside the
// blob; any tampering or key mismatch yields ErrDecrypt.
func Decrypt(blob, key string) (string, error) {
	raw, errDecode := base64.StdEncoding.DecodeString(blob)
	if errDecode != nil {
		return "", ErrDecrypt
	}
	if len(raw) < gcmNonceSize {
		return "", ErrDecrypt
	}

	block, errCipher := aes.NewCipher(deriveKey(key))
	if errCipher != nil {
		return "", ErrDecrypt
	}
	gcm, errGCM := cipher.NewGCM(block)
	if errGCM != nil {
		return "", ErrDecrypt
	}

	plaintext, errOpen := gcm.Open(nil, raw[:gcmNonceSize], raw[gcmNonceSize:], nil)
	if errOpen != nil {
		return "", ErrDecrypt
	}
	return string(plaintext), nil
}
