package performance

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/stay-reservation/internal/model"
)

// DefaultCacheTTL is how long a snapshot is served before recomputation.
const DefaultCacheTTL = 5 * time.Minute

// Cache stores snapshots by key. Implementations must be safe for
// concurrent use. A cache miss or failure only costs a recomputation.
type Cache interface {
	Get(ctx context.Context, key string) (*model.Performance, bool)
	Set(ctx context.Context, key string, p *model.Performance, ttl time.Duration)
	Clear(ctx context.Context)
}

// CacheKey identifies a snapshot by listing and window.
func CacheKey(listingID uint64, windowDays int) string {
	return fmt.Sprintf("%d_%d", listingID, windowDays)
}

type memoryEntry struct {
	perf      model.Performance
	expiresAt time.Time
}

// MemoryCache is a process-local TTL map.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]memoryEntry
	now   func() time.Time
}

// NewMemoryCache returns an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: map[string]memoryEntry{}, now: time.Now}
}

// Get returns a copy of a live entry. Expired entries are dropped lazily.
func (c *MemoryCache) Get(_ context.Context, key string) (*model.Performance, bool) {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		if cur, ok := c.items[key]; ok && cur.expiresAt.Equal(e.expiresAt) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return clonePerformance(&e.perf), true
}

// Set stores a copy of p.
func (c *MemoryCache) Set(_ context.Context, key string, p *model.Performance, ttl time.Duration) {
	c.mu.Lock()
	c.items[key] = memoryEntry{perf: *clonePerformance(p), expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
}

func clonePerformance(p *model.Performance) *model.Performance {
	cp := *p
	cp.Recommendations = slices.Clone(p.Recommendations)
	return &cp
}

// Clear drops every entry.
func (c *MemoryCache) Clear(_ context.Context) {
	c.mu.Lock()
	c.items = map[string]memoryEntry{}
	c.mu.Unlock()
}

// RedisCache shares snapshots between instances as JSON values.
type RedisCache struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisCache returns a cache storing keys under prefix.
func NewRedisCache(rdb *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "perf"
	}
	return &RedisCache{rdb: rdb, prefix: prefix}
}

func (c *RedisCache) key(k string) string { return c.prefix + ":" + k }

// Get implements Cache. Redis errors read as a miss.
func (c *RedisCache) Get(ctx context.Context, key string) (*model.Performance, bool) {
	bs, err := c.rdb.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		return nil, false
	}
	var p model.Performance
	if err := json.Unmarshal(bs, &p); err != nil {
		return nil, false
	}
	return &p, true
}

// Set implements Cache. Write failures are ignored.
func (c *RedisCache) Set(ctx context.Context, key string, p *model.Performance, ttl time.Duration) {
	bs, err := json.Marshal(p)
	if err != nil {
		return
	}
	_ = c.rdb.Set(ctx, c.key(key), bs, ttl).Err()
}

// Clear deletes every key under the prefix.
func (c *RedisCache) Clear(ctx context.Context) {
	iter := c.rdb.Scan(ctx, 0, c.prefix+":*", 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			_ = c.rdb.Del(ctx, batch...).Err()
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		_ = c.rdb.Del(ctx, batch...).Err()
	}
}
