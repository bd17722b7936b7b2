package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const defaultCleanupInterval = 30 * time.Second

// cacheEntry wraps a cached value with expiration time
type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e *cacheEntry) isExpired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// InMemoryStore implements Store inside the process. Entries are not
// shared between instances, so it only suits single-instance deployments
// and tests.
type InMemoryStore struct {
	entries sync.Map // map[string]*cacheEntry
	logger  *zap.Logger
	now     func() time.Time
	stopCh  chan struct{}
	stopped int32

	hits   int64
	misses int64
}

// InMemoryStoreOption is a functional option for configuring the store
type InMemoryStoreOption func(*InMemoryStore)

// WithInMemoryLogger sets the logger for the store
func WithInMemoryLogger(logger *zap.Logger) InMemoryStoreOption {
	return func(s *InMemoryStore) {
		s.logger = logger
	}
}

// withClock replaces time.Now; used by tests
func withClock(now func() time.Time) InMemoryStoreOption {
	return func(s *InMemoryStore) {
		s.now = now
	}
}

// NewInMemoryStore creates a store and starts its cleanup goroutine
func NewInMemoryStore(opts ...InMemoryStoreOption) *InMemoryStore {
	s := &InMemoryStore{
		logger: zap.NewNop(),
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.cleanupExpired()
	return s
}

// Get returns a copy of the cached value
func (s *InMemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	if value, ok := s.entries.Load(key); ok {
		entry := value.(*cacheEntry)
		if !entry.isExpired(s.now()) {
			atomic.AddInt64(&s.hits, 1)
			return append([]byte(nil), entry.value...), true, nil
		}
		s.entries.Delete(key)
	}
	atomic.AddInt64(&s.misses, 1)
	return nil, false, nil
}

// Set stores a copy of value for ttl
func (s *InMemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.entries.Store(key, &cacheEntry{
		value:     append([]byte(nil), value...),
		expiresAt: s.now().Add(ttl),
	})
	return nil
}

// Delete removes keys
func (s *InMemoryStore) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		s.entries.Delete(key)
	}
	return nil
}

// Close stops the cleanup goroutine
func (s *InMemoryStore) Close() error {
	if atomic.CompareAndSwapInt32(&s.stopped, 0, 1) {
		close(s.stopCh)
	}
	return nil
}

// GetStats returns cache statistics
func (s *InMemoryStore) GetStats() (hits, misses int64) {
	return atomic.LoadInt64(&s.hits), atomic.LoadInt64(&s.misses)
}

// Count returns the number of entries, expired ones included
func (s *InMemoryStore) Count() int {
	n := 0
	s.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (s *InMemoryStore) cleanupExpired() {
	ticker := time.NewTicker(defaultCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			if removed := s.doCleanup(); removed > 0 {
				s.logger.Debug("Cleaned up expired cache entries", zap.Int("removed", removed))
			}
		}
	}
}

func (s *InMemoryStore) doCleanup() int {
	now := s.now()
	removed := 0
	s.entries.Range(func(key, value any) bool {
		if value.(*cacheEntry).isExpired(now) {
			s.entries.Delete(key)
			removed++
		}
		return true
	})
	return removed
}

var _ Store = (*InMemoryStore)(nil)
