package authcache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const redisKeyPrefix = "apikey:"

// RedisCache stores entries in Redis, for deployments where cache hits must
// survive process restarts and be shared across replicas. Methods return the
// transport error so the Manager can trip its breaker; a plain miss is not
// an error.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache constructs a RedisCache. An optional prefix namespaces keys
// in shared Redis instances.
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{
		client: client,
		prefix: strings.TrimSpace(prefix),
	}
}

func (c *RedisCache) buildKey(hashedKey string) string {
	if c.prefix == "" {
		return redisKeyPrefix + hashedKey
	}
	return c.prefix + ":" + redisKeyPrefix + hashedKey
}

// Get returns the cached entry. A corrupt value is treated as a miss, not a
// backend failure.
func (c *RedisCache) Get(ctx context.Context, hashedKey string) (*Entry, bool, error) {
	if c == nil || c.client == nil || hashedKey == "" {
		return nil, false, nil
	}
	raw, errGet := c.client.Get(ctx, c.buildKey(hashedKey)).Bytes()
	if errors.Is(errGet, redis.Nil) {
		return nil, false, nil
	}
	if errGet != nil {
		return nil, false, errGet
	}
	var entry Entry
	if errUnmarshal := json.Unmarshal(raw, &entry); errUnmarshal != nil {
		log.WithError(errUnmarshal).Warn("auth cache: corrupt redis entry, treating as miss")
		return nil, false, nil
	}
	return &entry, true, nil
}

// Put stores an entry with the given TTL.
func (c *RedisCache) Put(ctx context.Context, hashedKey string, entry *Entry, ttl time.Duration) error {
	if c == nil || c.client == nil || hashedKey == "" || entry == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	raw, errMarshal := json.Marshal(entry)
	if errMarshal != nil {
		log.WithError(errMarshal).Warn("auth cache: marshal entry failed")
		return nil
	}
	return c.client.Set(ctx, c.buildKey(hashedKey), raw, ttl).Err()
}

// Delete removes an entry if present.
func (c *RedisCache) Delete(ctx context.Context, hashedKey string) error {
	if c == nil || c.client == nil || hashedKey == "" {
		return nil
	}
	return c.client.Del(ctx, c.buildKey(hashedKey)).Err()
}
