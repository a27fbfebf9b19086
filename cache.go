package jembatan

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"sync"
	"time"
)

// CacheManager stores GET response bodies addressed by ContentKey.
// Implementations may return errors; the client treats every cache failure
// as a miss.
type CacheManager interface {
	Put(ctx context.Context, req *GetRequest, value, contentType string, d time.Duration) error
	Get(ctx context.Context, req *GetRequest) (*CacheContent, bool, error)
	Remove(ctx context.Context, req *GetRequest) error
}

// ContentKey is the base64 encoded SHA-1 of the request's full URI.
func ContentKey(req *Request) string {
	sum := sha1.Sum([]byte(req.FullURI()))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// MemoryCacheManager keeps entries in a single map guarded by one mutex.
// Expired entries are evicted lazily when read. Once bound to a metrics
// collector it reports its entry count after every change.
type MemoryCacheManager struct {
	mu      sync.Mutex
	entries map[string]*CacheContent
	now     func() time.Time
	name    string
	metrics *MetricsCollector
}

// MemoryCacheOption configures a MemoryCacheManager
type MemoryCacheOption func(*MemoryCacheManager)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) MemoryCacheOption {
	return func(m *MemoryCacheManager) {
		m.now = now
	}
}

// WithCacheName sets the name label of the cache size gauge. The default
// is "memory".
func WithCacheName(name string) MemoryCacheOption {
	return func(m *MemoryCacheManager) {
		m.name = name
	}
}

// NewMemoryCacheManager creates an empty cache.
func NewMemoryCacheManager(options ...MemoryCacheOption) *MemoryCacheManager {
	m := &MemoryCacheManager{
		entries: make(map[string]*CacheContent),
		now:     time.Now,
		name:    "memory",
	}
	for _, option := range options {
		option(m)
	}
	return m
}

// Put stores value for d, replacing any entry with the same key. A
// non-positive duration stores nothing.
func (m *MemoryCacheManager) Put(_ context.Context, req *GetRequest, value, contentType string, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	key := ContentKey(req.Request)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = &CacheContent{
		Key:         key,
		Value:       value,
		ContentType: contentType,
		ExpiresAt:   m.now().Add(d),
	}
	m.recordSize()
	return nil
}

// Get returns a copy of the live entry for req. An expired entry is removed.
func (m *MemoryCacheManager) Get(_ context.Context, req *GetRequest) (*CacheContent, bool, error) {
	key := ContentKey(req.Request)

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(entry.ExpiresAt) {
		delete(m.entries, key)
		m.recordSize()
		return nil, false, nil
	}
	content := *entry
	return &content, true, nil
}

// Remove deletes the entry for req, if any.
func (m *MemoryCacheManager) Remove(_ context.Context, req *GetRequest) error {
	key := ContentKey(req.Request)

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	m.recordSize()
	return nil
}

// Len returns the number of stored entries, expired or not.
func (m *MemoryCacheManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Purge drops every expired entry and returns how many were removed.
func (m *MemoryCacheManager) Purge() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for key, entry := range m.entries {
		if !now.Before(entry.ExpiresAt) {
			delete(m.entries, key)
			removed++
		}
	}
	m.recordSize()
	return removed
}

// Clear drops every entry.
func (m *MemoryCacheManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*CacheContent)
	m.recordSize()
}

func (m *MemoryCacheManager) reportTo(mc *MetricsCollector) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.metrics == nil {
		m.metrics = mc
		m.recordSize()
	}
}

// recordSize must be called with mu held.
func (m *MemoryCacheManager) recordSize() {
	m.metrics.RecordCacheSize(m.name, len(m.entries))
}

// NoopCacheManager never stores anything.
type NoopCacheManager struct{}

func (NoopCacheManager) Put(context.Context, *GetRequest, string, string, time.Duration) error {
	return nil
}

func (NoopCacheManager) Get(context.Context, *GetRequest) (*CacheContent, bool, error) {
	return nil, false, nil
}

func (NoopCacheManager) Remove(context.Context, *GetRequest) error {
	return nil
}
