package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultMaxEntries is the default capacity of the in-process store.
const DefaultMaxEntries = 1000

type entry struct {
	value     []byte
	storedAt  time.Time
	expiresAt time.Time
}

// Memory is an in-process Store with TTL expiry and a hard entry cap.
// When a write pushes the store over capacity, expired entries are
// dropped first, then the oldest live entries.
type Memory struct {
	mu         sync.Mutex
	entries    map[string]entry
	maxEntries int
	now        func() time.Time // overridable for tests
}

// NewMemory creates an in-process store holding at most maxEntries entries.
func NewMemory(maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Memory{
		entries:    make(map[string]entry),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get returns a copy of the value stored at key. Expired entries are
// removed and reported as ErrNotFound.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	if m.now().After(e.expiresAt) {
		delete(m.entries, key)
		return nil, ErrNotFound
	}

	// Copy so callers cannot mutate the stored entry.
	value := make([]byte, len(e.value))
	copy(value, e.value)
	return value, nil
}

// SetWithTTL stores a value that expires after ttl, evicting if needed.
func (m *Memory) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.entries[key] = entry{
		value:     stored,
		storedAt:  now,
		expiresAt: now.Add(ttl),
	}

	if len(m.entries) > m.maxEntries {
		m.evict(now)
	}
	return nil
}

// Len reports the current number of entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// evict drops expired entries, then the oldest live entries, until the
// store fits its capacity again. Caller holds the lock.
func (m *Memory) evict(now time.Time) {
	for key, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, key)
		}
	}

	for len(m.entries) > m.maxEntries {
		var oldestKey string
		var oldest time.Time
		for key, e := range m.entries {
			if oldestKey == "" || e.storedAt.Before(oldest) {
				oldestKey = key
				oldest = e.storedAt
			}
		}
		delete(m.entries, oldestKey)
	}
}

// Ensure Memory implements Store.
var _ Store = (*Memory)(nil)
