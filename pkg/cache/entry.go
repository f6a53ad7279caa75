package cache

import (
	"time"
)

// Entry is a cached value with its expiration time.
type Entry[V any] struct {
	// Value is the memoized value
	Value V

	// Expires is when the entry becomes stale
	Expires time.Time
}

// NewEntry creates an entry for value that expires ttl from now.
func NewEntry[V any](value V, ttl time.Duration) *Entry[V] {
	return &Entry[V]{
		Value:   value,
		Expires: time.Now().Add(ttl),
	}
}

// Expired returns true if the entry is no longer valid at now.
func (e *Entry[V]) Expired(now time.Time) bool {
	return !now.Before(e.Expires)
}

// TTL returns the time until expiration relative to now.
// Returns 0 if already expired.
func (e *Entry[V]) TTL(now time.Time) time.Duration {
	ttl := e.Expires.Sub(now)
	if ttl < 0 {
		return 0
	}
	return ttl
}
