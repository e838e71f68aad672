package cache

import (
	"context"
	"sync"
	"time"

	"github.com/ledgerly/backend/internal/domain/collection"
)

type cacheEntry struct {
	value     string
	expiresAt time.Time
}

// InMemoryReliabilityCache implements the reliability cache with a map.
// Suitable for single-instance deployments and testing.
type InMemoryReliabilityCache struct {
	mu        sync.RWMutex
	entries   map[string]cacheEntry
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryReliabilityCache creates a new in-memory cache with a background
// cleanup goroutine
func NewInMemoryReliabilityCache() *InMemoryReliabilityCache {
	c := &InMemoryReliabilityCache{
		entries:  make(map[string]cacheEntry),
		stopChan: make(chan struct{}),
	}
	c.wg.Add(1)
	go c.cleanupLoop()
	return c
}

// Get returns the cached value and whether the key was present and unexpired
func (c *InMemoryReliabilityCache) Get(ctx context.Context, key string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, exists := c.entries[key]
	if !exists || time.Now().After(e.expiresAt) {
		return "", false, nil
	}
	return e.value, true, nil
}

// Set stores the value with the given TTL
func (c *InMemoryReliabilityCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (c *InMemoryReliabilityCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.stopChan)
		c.wg.Wait()
	})
	return nil
}

func (c *InMemoryReliabilityCache) cleanupLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

func (c *InMemoryReliabilityCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}

var _ collection.ReliabilityCache = (*InMemoryReliabilityCache)(nil)
