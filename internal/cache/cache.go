// Package cache provides the time-bounded stores backing the search
// result cache. Values are opaque bytes; callers own serialization.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key is absent or its entry has expired.
var ErrNotFound = errors.New("cache: key not found")

// Store is the key-value contract the search service caches through.
// Implementations must be safe for concurrent use; a reader never
// observes a partially written entry.
type Store interface {
	// Get returns the value stored at key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// SetWithTTL stores a value that expires after ttl.
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
