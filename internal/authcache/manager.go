package authcache

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const redisBreakerDuration = 30 * time.Second

// RedisConfig holds the optional Redis backend settings.
type RedisConfig struct {
	Addr     string
	Password string
	Prefix   string
	DB       int
}

// Manager serves cache operations from Redis when configured and reachable,
// falling back to an in-process cache behind a short-lived breaker when
// Redis misbehaves. Any Redis failure, at connect time or mid-operation,
// trips the breaker. Entries lost in the fallback window are repopulated on
// the next miss; correctness never depends on the cache.
type Manager struct {
	cfg   *RedisConfig
	nowFn func() time.Time

	memory *MemoryCache

	mu           sync.Mutex
	redisCache   *RedisCache
	breakerUntil time.Time
}

// NewManager constructs a Manager. A nil cfg disables the Redis backend.
func NewManager(cfg *RedisConfig) *Manager {
	return &Manager{
		cfg:    cfg,
		nowFn:  time.Now,
		memory: NewMemoryCache(),
	}
}

// Get implements Cache.
func (m *Manager) Get(ctx context.Context, hashedKey string) (*Entry, bool) {
	if m == nil {
		return nil, false
	}
	if entry, ok, served := m.getRedis(ctx, hashedKey); served {
		return entry, ok
	}
	return m.memory.Get(ctx, hashedKey)
}

// Put implements Cache.
func (m *Manager) Put(ctx context.Context, hashedKey string, entry *Entry, ttl time.Duration) {
	if m == nil {
		return
	}
	if backend := m.redisBackend(ctx); backend != nil {
		errPut := backend.Put(ctx, hashedKey, entry, ttl)
		if errPut == nil {
			return
		}
		m.tripBreaker(errPut, m.nowFn())
	}
	m.memory.Put(ctx, hashedKey, entry, ttl)
}

// Delete implements Cache. Both backends are cleared so a fallback window
// cannot resurrect a deleted entry.
func (m *Manager) Delete(ctx context.Context, hashedKey string) {
	if m == nil {
		return
	}
	if backend := m.redisBackend(ctx); backend != nil {
		if errDelete := backend.Delete(ctx, hashedKey); errDelete != nil {
			m.tripBreaker(errDelete, m.nowFn())
		}
	}
	m.memory.Delete(ctx, hashedKey)
}

// getRedis attempts the lookup on the Redis backend. served is false when
// the backend is unconfigured, the breaker is open, or the operation failed;
// the caller then consults the memory cache.
func (m *Manager) getRedis(ctx context.Context, hashedKey string) (entry *Entry, ok, served bool) {
	backend := m.redisBackend(ctx)
	if backend == nil {
		return nil, false, false
	}
	entry, ok, errGet := backend.Get(ctx, hashedKey)
	if errGet != nil {
		m.tripBreaker(errGet, m.nowFn())
		return nil, false, false
	}
	return entry, ok, true
}

// redisBackend returns the Redis backend, connecting lazily. A nil return
// means the memory cache should serve.
func (m *Manager) redisBackend(ctx context.Context) *RedisCache {
	if m.cfg == nil || m.cfg.Addr == "" {
		return nil
	}
	now := m.nowFn()

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.breakerUntil.IsZero() {
		if now.Before(m.breakerUntil) {
			return nil
		}
		m.breakerUntil = time.Time{}
	}

	if m.redisCache != nil {
		return m.redisCache
	}

	client := redis.NewClient(&redis.Options{
		Addr:     m.cfg.Addr,
		Password: m.cfg.Password,
		DB:       m.cfg.DB,
	})
	ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if errPing := client.Ping(ctxPing).Err(); errPing != nil {
		_ = client.Close()
		m.breakerUntil = now.Add(redisBreakerDuration)
		log.WithError(errPing).Warn("auth cache: redis unavailable, falling back to memory")
		return nil
	}
	m.redisCache = NewRedisCache(client, m.cfg.Prefix)
	return m.redisCache
}

// tripBreaker opens the fallback window after an operational Redis failure.
func (m *Manager) tripBreaker(err error, now time.Time) {
	if err == nil || m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.breakerUntil.IsZero() && now.Before(m.breakerUntil) {
		return
	}
	m.breakerUntil = now.Add(redisBreakerDuration)
	log.WithError(err).Warn("auth cache: redis error, falling back to memory")
}
