package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ledgerly/backend/internal/domain/collection"
	"github.com/redis/go-redis/v9"
)

// RedisReliabilityCache stores client history profiles in Redis. Suitable for
// distributed deployments where multiple instances share profile state.
type RedisReliabilityCache struct {
	client *redis.Client
}

// NewRedisReliabilityCache creates a cache backed by an existing Redis client
func NewRedisReliabilityCache(client *redis.Client) *RedisReliabilityCache {
	return &RedisReliabilityCache{client: client}
}

// Get returns the cached value and whether the key was present
func (c *RedisReliabilityCache) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read cache key %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores the value with the given TTL
func (c *RedisReliabilityCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache key %s: %w", key, err)
	}
	return nil
}

var _ collection.ReliabilityCache = (*RedisReliabilityCache)(nil)
