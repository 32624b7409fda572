// Package cache stores per-owner tag listings in redis, or in process memory
// when redis is not configured or unreachable.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is a byte-oriented key/value store with expiry
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// RedisStore implements Store on a redis client
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// MemoryStore implements Store in process memory
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memoryEntry
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]memoryEntry), now: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && s.now().After(e.expires) {
		delete(s.items, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expires = s.now().Add(ttl)
	}
	s.items[key] = e
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.items, k)
	}
	return nil
}

// Connect returns a redis-backed store when addr is set and answers a ping,
// otherwise an in-memory store. The returned close func releases the client.
func Connect(ctx context.Context, addr, password string, db int, logger *slog.Logger) (Store, func() error) {
	if addr == "" {
		logger.Info("redis not configured, using in-memory cache")
		return NewMemoryStore(), func() error { return nil }
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, using in-memory cache",
			slog.String("addr", addr), slog.Any("error", err))
		client.Close()
		return NewMemoryStore(), func() error { return nil }
	}

	logger.Info("connected to redis", slog.String("addr", addr), slog.Int("db", db))
	return NewRedisStore(client), client.Close
}

// TagCache caches each owner's tag listing as JSON.
// It satisfies reconcile.Invalidator.
type TagCache struct {
	store  Store
	ttl    time.Duration
	logger *slog.Logger
}

func NewTagCache(store Store, ttl time.Duration, logger *slog.Logger) *TagCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &TagCache{store: store, ttl: ttl, logger: logger}
}

func tagKey(ownerID uint) string {
	return fmt.Sprintf("linkrem:tags:%d", ownerID)
}

// Load decodes the cached listing for ownerID into v. Misses and store
// errors both report false.
func (c *TagCache) Load(ctx context.Context, ownerID uint, v interface{}) bool {
	b, ok, err := c.store.Get(ctx, tagKey(ownerID))
	if err != nil {
		c.logger.WarnContext(ctx, "tag cache read failed", slog.Any("error", err))
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(b, v); err != nil {
		c.logger.WarnContext(ctx, "tag cache entry is corrupt", slog.Any("error", err))
		return false
	}
	return true
}

// Save stores v as the listing for ownerID
func (c *TagCache) Save(ctx context.Context, ownerID uint, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		c.logger.WarnContext(ctx, "tag cache encode failed", slog.Any("error", err))
		return
	}
	if err := c.store.Set(ctx, tagKey(ownerID), b, c.ttl); err != nil {
		c.logger.WarnContext(ctx, "tag cache write failed", slog.Any("error", err))
	}
}

// InvalidateOwner drops the cached listing for ownerID
func (c *TagCache) InvalidateOwner(ctx context.Context, ownerID uint) {
	if err := c.store.Delete(ctx, tagKey(ownerID)); err != nil {
		c.logger.WarnContext(ctx, "tag cache invalidation failed",
			slog.Uint64("owner_id", uint64(ownerID)), slog.Any("error", err))
	}
}
