package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // нулевое значение — без истечения
}

// MemoryCache реализует CacheRepo в памяти процесса.
// Используется когда Redis не настроен и в тестах.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time

	requests int64
	hits     int64
	misses   int64
}

// NewMemoryCache создаёт пустой кеш.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	atomic.AddInt64(&m.requests, 1)

	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok || m.expired(e) {
		atomic.AddInt64(&m.misses, 1)
		return nil, ErrCacheMiss
	}
	atomic.AddInt64(&m.hits, 1)

	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

func (m *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return ErrInvalidKey
	}
	e := memoryEntry{value: make([]byte, len(value))}
	copy(e.value, value)
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	return ok && !m.expired(e), nil
}

func (m *MemoryCache) Close() error { return nil }

func (m *MemoryCache) GetMetrics() *CacheMetrics {
	hits := atomic.LoadInt64(&m.hits)
	misses := atomic.LoadInt64(&m.misses)
	metrics := &CacheMetrics{
		TotalRequests: atomic.LoadInt64(&m.requests),
		CacheHits:     hits,
		CacheMisses:   misses,
		LastUpdate:    m.now(),
	}
	if total := hits + misses; total > 0 {
		metrics.HitRatio = float64(hits) / float64(total)
	}
	return metrics
}

func (m *MemoryCache) expired(e memoryEntry) bool {
	return !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt)
}
