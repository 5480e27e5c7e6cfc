package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/kiranshivaraju/medinventory/pkg/models"
)

// MemoryCache implements Cache in process using go-cache. It backs the server
// when no Redis URL is configured.
type MemoryCache struct {
	items *gocache.Cache
	// incrMu makes read-increment-write in IncrWithExpiry atomic.
	incrMu sync.Mutex
}

// NewMemoryCache returns an empty cache that sweeps expired entries every cleanup.
func NewMemoryCache(cleanup time.Duration) *MemoryCache {
	return &MemoryCache{items: gocache.New(gocache.NoExpiration, cleanup)}
}

func (c *MemoryCache) Ping(_ context.Context) error { return nil }

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.items.Set(key, append([]byte(nil), value...), ttlOrForever(ttl))
	return nil
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, found := c.items.Get(key)
	if !found {
		return nil, false, nil
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), b...), true, nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.items.Delete(key)
	return nil
}

func (c *MemoryCache) SetJobProgress(ctx context.Context, p models.JobProgress, ttl time.Duration) error {
	return setJobProgress(ctx, c, p, ttl)
}

func (c *MemoryCache) GetJobProgress(ctx context.Context, jobID uuid.UUID) (models.JobProgress, bool, error) {
	return getJobProgress(ctx, c, jobID)
}

// IncrWithExpiry increments key and resets its expiry, matching the Redis
// INCR+EXPIRE pipeline.
func (c *MemoryCache) IncrWithExpiry(_ context.Context, key string, expiry time.Duration) (int64, error) {
	c.incrMu.Lock()
	defer c.incrMu.Unlock()

	var n int64
	if v, found := c.items.Get(key); found {
		if cur, ok := v.(int64); ok {
			n = cur
		}
	}
	n++
	c.items.Set(key, n, ttlOrForever(expiry))
	return n, nil
}

func ttlOrForever(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return gocache.NoExpiration
	}
	return ttl
}
