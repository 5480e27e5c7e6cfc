package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/kiranshivaraju/medinventory/pkg/models"
)

// Cache is the caching interface. All cache operations go through here.
// Implementations must be safe for concurrent use.
type Cache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	SetJobProgress(ctx context.Context, p models.JobProgress, ttl time.Duration) error
	GetJobProgress(ctx context.Context, jobID uuid.UUID) (models.JobProgress, bool, error)
	IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error)
}

// RedisCache implements the Cache interface using go-redis/v9.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new RedisCache from a Redis URL.
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisCache{client: redis.NewClient(opts)}, nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

func (c *RedisCache) SetJobProgress(ctx context.Context, p models.JobProgress, ttl time.Duration) error {
	return setJobProgress(ctx, c, p, ttl)
}

func (c *RedisCache) GetJobProgress(ctx context.Context, jobID uuid.UUID) (models.JobProgress, bool, error) {
	return getJobProgress(ctx, c, jobID)
}

func (c *RedisCache) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, expiry)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// setJobProgress and getJobProgress store progress snapshots as JSON so every
// backend shares one encoding.
func setJobProgress(ctx context.Context, c Cache, p models.JobProgress, ttl time.Duration) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding job progress: %w", err)
	}
	return c.Set(ctx, JobProgressKey(p.JobID), data, ttl)
}

func getJobProgress(ctx context.Context, c Cache, jobID uuid.UUID) (models.JobProgress, bool, error) {
	data, found, err := c.Get(ctx, JobProgressKey(jobID))
	if err != nil || !found {
		return models.JobProgress{}, false, err
	}
	var p models.JobProgress
	if err := json.Unmarshal(data, &p); err != nil {
		return models.JobProgress{}, false, fmt.Errorf("decoding job progress: %w", err)
	}
	return p, true, nil
}

var (
	_ Cache = (*RedisCache)(nil)
	_ Cache = (*MemoryCache)(nil)
)
