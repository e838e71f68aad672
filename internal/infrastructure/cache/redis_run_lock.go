package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/ledgerly/backend/internal/domain/collection"
	"github.com/redis/go-redis/v9"
)

// RedisRunLock mutually excludes concurrent collection runs per tenant using
// SETNX with a TTL. The TTL bounds how long a crashed run can block its
// tenant; a normally-completing run releases the key explicitly.
type RedisRunLock struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisRunLock creates a lock backed by an existing Redis client
func NewRedisRunLock(client *redis.Client) *RedisRunLock {
	return &RedisRunLock{
		client:    client,
		keyPrefix: "lock:",
	}
}

// Acquire atomically claims the lock. Returns false if another holder exists.
func (l *RedisRunLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	acquired, err := l.client.SetNX(ctx, l.keyPrefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	return acquired, nil
}

// Release frees the lock
func (l *RedisRunLock) Release(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", key, err)
	}
	return nil
}

var _ collection.RunLock = (*RedisRunLock)(nil)
