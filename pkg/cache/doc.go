// Package cache provides a weakly-referenced TTL cache for memoizing lookups.
//
// The cache holds only weak pointers to its entries. It never keeps an entry
// alive by itself: an entry is returned by Get only while some other owner
// still references it and its expiry has not passed.
//
// # Basic Usage
//
//	c := cache.New[Endpoint](cache.WithName("identity"))
//
//	entry := cache.NewEntry(endpoint, 10*time.Minute)
//	c.Set("did:plc:abc", entry)
//
//	// Keep entry referenced for as long as the value is in use.
//	if e, ok := c.Get("did:plc:abc"); ok {
//		use(e.Value)
//	}
//
// # Eviction
//
// Eviction is lazy. A mapping is pruned only when Get is called for the same
// key and finds the entry expired or already reclaimed by the garbage
// collector. A key never looked up again may linger as a dead mapping; the
// memory of the value itself is reclaimed regardless.
//
// # Metrics
//
//   - skyscan_cache_hits_total{cache} - Cache hits
//   - skyscan_cache_misses_total{cache,reason} - Misses by reason (absent, expired, reclaimed)
//   - skyscan_cache_mappings{cache} - Current number of mappings, dead or alive
package cache
