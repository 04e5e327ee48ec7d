package authcache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	entry     Entry
	expiresAt time.Time
}

// MemoryCache implements Cache with an in-process map.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	nowFn   func() time.Time
}

// NewMemoryCache constructs a MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		nowFn:   time.Now,
	}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, hashedKey string) (*Entry, bool) {
	if c == nil || hashedKey == "" {
		return nil, false
	}
	now := c.nowFn()

	c.mu.Lock()
	defer c.mu.Unlock()
	cached, ok := c.entries[hashedKey]
	if !ok {
		return nil, false
	}
	if now.After(cached.expiresAt) {
		delete(c.entries, hashedKey)
		return nil, false
	}
	entry := cached.entry
	return &entry, true
}

// Put implements Cache.
func (c *MemoryCache) Put(_ context.Context, hashedKey string, entry *Entry, ttl time.Duration) {
	if c == nil || hashedKey == "" || entry == nil {
		return
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	c.mu.Lock()
	c.entries[hashedKey] = memoryEntry{entry: *entry, expiresAt: c.nowFn().Add(ttl)}
	c.mu.Unlock()
}

// Delete implements Cache.
func (c *MemoryCache) Delete(_ context.Context, hashedKey string) {
	if c == nil || hashedKey == "" {
		return
	}
	c.mu.Lock()
	delete(c.entries, hashedKey)
	c.mu.Unlock()
}
