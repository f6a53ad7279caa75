package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Miss reasons used as the "reason" label of CacheMisses.
const (
	missAbsent    = "absent"
	missExpired   = "expired"
	missReclaimed = "reclaimed"
)

var (
	// CacheHits tracks cache hits by cache name
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skyscan_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache"},
	)

	// CacheMisses tracks cache misses by cache name and reason
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skyscan_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache", "reason"}, // "absent", "expired", "reclaimed"
	)

	// CacheMappings tracks the number of key mappings, including dead ones
	CacheMappings = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "skyscan_cache_mappings",
			Help: "Current number of cache key mappings",
		},
		[]string{"cache"},
	)
)
