package course

import (
	"context"
	"sync"
	"time"
)

// TreeCache stores encoded course trees by course id. Implementations
// hold bytes so every reader decodes its own copy.
type TreeCache interface {
	Get(ctx context.Context, courseID string) ([]byte, bool, error)
	Set(ctx context.Context, courseID string, tree []byte) error
	Delete(ctx context.Context, courseID string) error
}

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// MemoryCache is an in-process TreeCache. A zero ttl keeps entries until
// they are deleted.
type MemoryCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl, entries: map[string]memoryEntry{}, now: time.Now}
}

func (m *MemoryCache) Get(_ context.Context, courseID string) ([]byte, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[courseID]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && m.now().After(e.expires) {
		m.mu.Lock()
		delete(m.entries, courseID)
		m.mu.Unlock()
		return nil, false, nil
	}
	return e.data, true, nil
}

func (m *MemoryCache) Set(_ context.Context, courseID string, tree []byte) error {
	e := memoryEntry{data: tree}
	if m.ttl > 0 {
		e.expires = m.now().Add(m.ttl)
	}
	m.mu.Lock()
	m.entries[courseID] = e
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) Delete(_ context.Context, courseID string) error {
	m.mu.Lock()
	delete(m.entries, courseID)
	m.mu.Unlock()
	return nil
}

// NoCache disables tree caching.
type NoCache struct{}

func (NoCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (NoCache) Set(context.Context, string, []byte) error         { return nil }
func (NoCache) Delete(context.Context, string) error              { return nil }
