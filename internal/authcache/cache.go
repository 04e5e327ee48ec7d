// Package authcache provides a best-effort, TTL-bounded cache of resolved
// API-key identities. It is not authoritative: an entry may describe a key
// that has since been revoked or a suspended account. Staleness heals itself
// within one TTL window; operators should treat that window as the maximum
// delay before revocation takes effect for cached keys.
package authcache

import (
	"context"
	"time"
)

// DefaultTTL bounds how long a resolved identity may be served from cache.
const DefaultTTL = time.Hour

// Entry is the cached identity tuple keyed by hashed API key.
//
// It deliberately carries no quota counters and no decrypted secret: quota is
// always checked live, and plaintext upstream keys exist only inside a single
// request.
type Entry struct {
	UserID                uint64 `json:"user_id"`
	Email                 string `json:"email"`
	Plan                  string `json:"plan"`
	ConnectionID          uint64 `json:"connection_id"`
	GeminiAPIKeyEncrypted string `json:"gemini_api_key_encrypted"`
	DefaultCorpusID       string `json:"default_corpus_id,omitempty"`
	APIKeyID              uint64 `json:"api_key_id"`
}

// Cache stores resolved identities keyed by hashed API key.
type Cache interface {
	// Get returns the cached entry and whether one was found and unexpired.
	Get(ctx context.Context, hashedKey string) (*Entry, bool)
	// Put stores an entry with the given TTL.
	Put(ctx context.Context, hashedKey string, entry *Entry, ttl time.Duration)
	// Delete removes an entry if present.
	Delete(ctx context.Context, hashedKey string)
}
