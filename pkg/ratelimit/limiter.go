package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// Prometheus metrics for per-host limiting.
var (
	limiterInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "skyscan_limiter_in_flight",
		Help: "Number of requests currently holding a slot, by host",
	}, []string{"host"})

	limiterWaiting = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "skyscan_limiter_waiting",
		Help: "Number of requests queued for a slot, by host",
	}, []string{"host"})

	limiterWaitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "skyscan_limiter_wait_seconds",
		Help:    "Time spent waiting for a slot, by host",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30},
	}, []string{"host"})
)

// hostSlots holds the semaphore and counters for one destination.
type hostSlots struct {
	sem      *semaphore.Weighted
	inFlight atomic.Int64
	waiting  atomic.Int64
}

// HostLimiter caps the number of in-flight operations per key.
//
// Keys are created on first use and live as long as the limiter. Callers
// queued on one key are admitted in FIFO order.
type HostLimiter struct {
	mu     sync.Mutex
	hosts  map[string]*hostSlots
	max    int
	logger zerolog.Logger
}

// NewHostLimiter creates a limiter allowing max concurrent operations per key.
// A max of zero or less selects DefaultMaxPerHost.
func NewHostLimiter(max int, logger zerolog.Logger) *HostLimiter {
	if max <= 0 {
		max = DefaultMaxPerHost
	}
	return &HostLimiter{
		hosts:  make(map[string]*hostSlots),
		max:    max,
		logger: logger,
	}
}

// Max returns the per-key slot count.
func (l *HostLimiter) Max() int {
	return l.max
}

func (l *HostLimiter) slots(key string) *hostSlots {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.hosts[key]
	if !ok {
		s = &hostSlots{sem: semaphore.NewWeighted(int64(l.max))}
		l.hosts[key] = s
	}
	return s
}

// Acquire waits for a free slot for key. The returned release function must
// be called exactly when the operation finishes; extra calls are no-ops.
// If ctx ends first, Acquire returns an error wrapping ctx.Err() and no slot
// is held.
func (l *HostLimiter) Acquire(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("acquire slot for %s: %w", key, err)
	}

	s := l.slots(key)
	start := time.Now()

	if s.inFlight.Load() >= int64(l.max) {
		l.logger.Debug().
			Str("host", key).
			Int64("in_flight", s.inFlight.Load()).
			Int64("waiting", s.waiting.Load()).
			Msg("Host saturated - queuing request")
	}

	s.waiting.Add(1)
	limiterWaiting.WithLabelValues(key).Inc()
	err := s.sem.Acquire(ctx, 1)
	s.waiting.Add(-1)
	limiterWaiting.WithLabelValues(key).Dec()

	if err != nil {
		l.logger.Debug().Err(err).Str("host", key).Msg("Gave up waiting for slot")
		return nil, fmt.Errorf("acquire slot for %s: %w", key, err)
	}

	limiterWaitSeconds.WithLabelValues(key).Observe(time.Since(start).Seconds())
	s.inFlight.Add(1)
	limiterInFlight.WithLabelValues(key).Inc()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.inFlight.Add(-1)
			limiterInFlight.WithLabelValues(key).Dec()
			s.sem.Release(1)
		})
	}, nil
}

// Do runs fn once a slot for key is available. The slot is released when fn
// returns, fails or panics.
func (l *HostLimiter) Do(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	release, err := l.Acquire(ctx, key)
	if err != nil {
		return err
	}
	defer release()

	return fn(ctx)
}

// State returns a snapshot of the slots for key. Unknown keys report an idle
// state without creating the key.
func (l *HostLimiter) State(key string) HostState {
	l.mu.Lock()
	s, ok := l.hosts[key]
	l.mu.Unlock()

	state := HostState{Key: key, Max: l.max}
	if ok {
		state.InFlight = int(s.inFlight.Load())
		state.Waiting = int(s.waiting.Load())
	}
	return state
}

// InFlight returns the number of slots currently held for key.
func (l *HostLimiter) InFlight(key string) int {
	return l.State(key).InFlight
}

// Keys returns the known keys in sorted order.
func (l *HostLimiter) Keys() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	keys := make([]string, 0, len(l.hosts))
	for k := range l.hosts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// KeyFor derives the limiter key for a request URL: its lower-cased host,
// including an explicit port. Unparseable input is used verbatim.
func KeyFor(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return strings.ToLower(u.Host)
}
