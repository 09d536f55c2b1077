package matches

import (
	"context"
	"sync"
	"time"
)

// mockStore implements the consumer interface for tests. RPush calls run
// concurrently inside Persist, so mutation is guarded.
type mockStore struct {
	mu       sync.Mutex
	lists    map[string][]string
	rpushFn  func(ctx context.Context, key string, values []string) error
	lrangeFn func(ctx context.Context, key string, start, stop int64) ([]string, error)
	expireFn func(ctx context.Context, key string, ttl time.Duration, nx bool) error

	rpushCalls  int
	expiredKey  string
	expiredTTL  time.Duration
	expireCalls int
}

func newMockStore() *mockStore {
	return &mockStore{lists: make(map[string][]string)}
}

func (m *mockStore) RPush(ctx context.Context, key string, values []string) error {
	m.mu.Lock()
	m.rpushCalls++
	m.mu.Unlock()
	if m.rpushFn != nil {
		return m.rpushFn(ctx, key, values)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[key] = append(m.lists[key], values...)
	return nil
}

func (m *mockStore) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	if m.lrangeFn != nil {
		return m.lrangeFn(ctx, key, start, stop)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lists[key], nil
}

func (m *mockStore) Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error {
	m.mu.Lock()
	m.expireCalls++
	m.expiredKey = key
	m.expiredTTL = ttl
	m.mu.Unlock()
	if m.expireFn != nil {
		return m.expireFn(ctx, key, ttl, nx)
	}
	return nil
}
