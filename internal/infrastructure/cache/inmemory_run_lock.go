package cache

import (
	"context"
	"sync"
	"time"

	"github.com/ledgerly/backend/internal/domain/collection"
)

// InMemoryRunLock implements the run lock with a map. Suitable for
// single-instance deployments and testing.
type InMemoryRunLock struct {
	mu    sync.Mutex
	locks map[string]time.Time
}

// NewInMemoryRunLock creates a new in-memory run lock
func NewInMemoryRunLock() *InMemoryRunLock {
	return &InMemoryRunLock{locks: make(map[string]time.Time)}
}

// Acquire claims the lock unless an unexpired holder exists
func (l *InMemoryRunLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if expiresAt, held := l.locks[key]; held && time.Now().Before(expiresAt) {
		return false, nil
	}
	l.locks[key] = time.Now().Add(ttl)
	return true, nil
}

// Release frees the lock
func (l *InMemoryRunLock) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.locks, key)
	return nil
}

var _ collection.RunLock = (*InMemoryRunLock)(nil)
