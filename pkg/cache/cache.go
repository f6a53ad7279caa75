package cache

import (
	"sync"
	"time"
	"weak"
)

// DefaultName is the metric label used when no name is configured.
const DefaultName = "default"

// Cache maps string keys to weakly referenced entries.
//
// It is safe for concurrent use. None of its methods return errors; a miss is
// reported through the boolean result of Get.
type Cache[V any] struct {
	mu      sync.Mutex
	entries map[string]weak.Pointer[Entry[V]]
	name    string
	now     func() time.Time
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	name string
	now  func() time.Time
}

// WithName sets the cache name used in metric labels.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// New creates an empty cache.
func New[V any](opts ...Option) *Cache[V] {
	o := options{
		name: DefaultName,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Cache[V]{
		entries: make(map[string]weak.Pointer[Entry[V]]),
		name:    o.name,
		now:     o.now,
	}
}

// Get returns the entry for key if it is still referenced elsewhere and has
// not expired. Otherwise the mapping for key is pruned and Get reports a miss.
func (c *Cache[V]) Get(key string) (*Entry[V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ref, ok := c.entries[key]
	if !ok {
		CacheMisses.WithLabelValues(c.name, missAbsent).Inc()
		return nil, false
	}

	entry := ref.Value()
	switch {
	case entry == nil:
		CacheMisses.WithLabelValues(c.name, missReclaimed).Inc()
	case entry.Expired(c.now()):
		CacheMisses.WithLabelValues(c.name, missExpired).Inc()
	default:
		CacheHits.WithLabelValues(c.name).Inc()
		return entry, true
	}

	delete(c.entries, key)
	CacheMappings.WithLabelValues(c.name).Set(float64(len(c.entries)))
	return nil, false
}

// Set stores a weak reference to entry under key, replacing any previous
// mapping. The cache does not extend the lifetime of entry. A nil entry
// removes the key.
func (c *Cache[V]) Set(key string, entry *Entry[V]) {
	if entry == nil {
		c.Delete(key)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = weak.Make(entry)
	CacheMappings.WithLabelValues(c.name).Set(float64(len(c.entries)))
}

// Delete removes the mapping for key. Deleting an absent key is a no-op.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	CacheMappings.WithLabelValues(c.name).Set(float64(len(c.entries)))
}

// Len returns the number of mappings, including mappings whose entry has
// already been reclaimed or has expired but was not looked up since.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Name returns the metric label of the cache.
func (c *Cache[V]) Name() string {
	return c.name
}
