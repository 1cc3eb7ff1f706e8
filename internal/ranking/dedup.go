package ranking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// NotificationKey is the per-listing, per-day dedup key.
func NotificationKey(listingID uint64, day time.Time) string {
	return fmt.Sprintf("low_performance_%d_%s", listingID, day.UTC().Format("2006-01-02"))
}

// Deduper remembers which notification keys were already emitted.
type Deduper interface {
	// MarkOnce records key and reports whether this call was the first.
	MarkOnce(ctx context.Context, key string) (bool, error)
}

// MemoryDeduper is a process-local Deduper. Keys live for the lifetime of
// the process; the date inside the key keeps the set bounded per day.
type MemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewMemoryDeduper returns an empty MemoryDeduper.
func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{seen: map[string]struct{}{}}
}

// MarkOnce implements Deduper.
func (d *MemoryDeduper) MarkOnce(_ context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[key]; ok {
		return false, nil
	}
	d.seen[key] = struct{}{}
	return true, nil
}

// RedisDeduper shares dedup state between instances with SETNX.
type RedisDeduper struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisDeduper returns a Deduper whose keys expire after ttl.
func NewRedisDeduper(rdb *redis.Client, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &RedisDeduper{rdb: rdb, ttl: ttl}
}

// MarkOnce implements Deduper.
func (d *RedisDeduper) MarkOnce(ctx context.Context, key string) (bool, error) {
	return d.rdb.SetNX(ctx, "notify:"+key, 1, d.ttl).Result()
}
