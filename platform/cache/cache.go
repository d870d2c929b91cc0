// Package cache implements the Response cache (spec.md §4.17): a
// per-process TTL cache fingerprinted by the SHA-256 of a canonical JSON
// encoding of a call's arguments. Grounded on infrastructure/cache/cache.go
// and infrastructure/fallback/fallback.go's cacheEntry/TTL shape.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

type entry struct {
	value      any
	expiration time.Time
}

// Cache is an in-memory, mutex-guarded TTL map. When a Redis client is
// attached via WithRedis, Get/Set/Delete/Clear go through Redis instead so
// multiple Monitor processes share one cache; the in-process map remains
// the default backing, matching spec.md §4.17's "per-process" scope.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	redis   *redis.Client
	prefix  string
}

// New constructs an in-process cache.
func New() *Cache {
	return &Cache{entries: make(map[string]*entry)}
}

// WithRedis attaches a shared Redis backing store, keyed under prefix.
func WithRedis(client *redis.Client, prefix string) *Cache {
	return &Cache{entries: make(map[string]*entry), redis: client, prefix: prefix}
}

// Fingerprint returns the SHA-256 hex digest of a canonical JSON encoding of
// args and sorted kwargs, so that keyword-argument order never changes the
// fingerprint.
func Fingerprint(name string, args []any, kwargs map[string]any) string {
	keys := make([]string, 0, len(kwargs))
	for k := range kwargs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte(':')
	for _, a := range args {
		enc, _ := json.Marshal(a)
		b.Write(enc)
		b.WriteByte(',')
	}
	b.WriteByte(';')
	for _, k := range keys {
		enc, _ := json.Marshal(kwargs[k])
		b.WriteString(k)
		b.WriteByte('=')
		b.Write(enc)
		b.WriteByte(',')
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached value for key if present and unexpired.
func (c *Cache) Get(ctx context.Context, key string) (any, bool) {
	if c.redis != nil {
		raw, err := c.redis.Get(ctx, c.prefix+key).Result()
		if err != nil {
			return nil, false
		}
		var v any
		if json.Unmarshal([]byte(raw), &v) != nil {
			return nil, false
		}
		return v, true
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expiration) {
		return nil, false
	}
	return e.value, true
}

// Set stores value under key with the given TTL.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	if c.redis != nil {
		enc, err := json.Marshal(value)
		if err == nil {
			_ = c.redis.Set(ctx, c.prefix+key, enc, ttl).Err()
		}
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &entry{value: value, expiration: time.Now().Add(ttl)}
}

// Delete removes key from the cache.
func (c *Cache) Delete(ctx context.Context, key string) {
	if c.redis != nil {
		_ = c.redis.Del(ctx, c.prefix+key).Err()
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear empties the entire cache.
func (c *Cache) Clear(ctx context.Context) {
	if c.redis != nil {
		iter := c.redis.Scan(ctx, 0, c.prefix+"*", 0).Iterator()
		for iter.Next(ctx) {
			_ = c.redis.Del(ctx, iter.Val()).Err()
		}
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

// ClearPattern removes every key whose name contains substr. It is used to
// invalidate cached cluster-overview/agent-list/topology entries on any
// write that affects those views (spec.md §4.17).
func (c *Cache) ClearPattern(ctx context.Context, substr string) {
	if c.redis != nil {
		iter := c.redis.Scan(ctx, 0, c.prefix+"*"+substr+"*", 0).Iterator()
		for iter.Next(ctx) {
			_ = c.redis.Del(ctx, iter.Val()).Err()
		}
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if strings.Contains(k, substr) {
			delete(c.entries, k)
		}
	}
}
