package identity

import (
	"context"
	"errors"
	"time"

	"github.com/Sternrassler/skyscan/pkg/cache"
	"github.com/Sternrassler/skyscan/pkg/client"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long a resolved identity is reused.
const DefaultTTL = 10 * time.Minute

var lookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "skyscan_identity_lookups_total",
	Help: "Total identity lookups by result",
}, []string{"result"}) // "cached", "resolved", "shared", "error"

// Resolver memoizes Directory lookups.
//
// Resolved identities live in a weak cache: an identity stays memoized
// while its TTL has not passed and some caller still references the
// *Identity returned by Resolve. Concurrent lookups of one identifier share
// a single directory request. Failures are not cached.
type Resolver struct {
	dir    Directory
	cache  *cache.Cache[Identity]
	group  singleflight.Group
	ttl    time.Duration
	now    func() time.Time
	logger zerolog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*resolverOptions)

type resolverOptions struct {
	ttl    time.Duration
	now    func() time.Time
	logger zerolog.Logger
}

// WithTTL sets how long resolved identities are reused.
func WithTTL(ttl time.Duration) ResolverOption {
	return func(o *resolverOptions) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithClock overrides the time source for entry expiry.
func WithClock(now func() time.Time) ResolverOption {
	return func(o *resolverOptions) {
		o.now = now
	}
}

// WithLogger sets the resolver logger.
func WithLogger(logger zerolog.Logger) ResolverOption {
	return func(o *resolverOptions) {
		o.logger = logger
	}
}

// NewResolver creates a resolver over dir.
func NewResolver(dir Directory, opts ...ResolverOption) *Resolver {
	o := resolverOptions{
		ttl:    DefaultTTL,
		now:    time.Now,
		logger: log.With().Str("component", "identity").Logger(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Resolver{
		dir:    dir,
		cache:  cache.New[Identity](cache.WithName("identity"), cache.WithClock(o.now)),
		ttl:    o.ttl,
		now:    o.now,
		logger: o.logger,
	}
}

// Resolve returns the identity for raw, a handle or a DID.
//
// Errors are *client.ResolutionError or *client.CancellationError.
func (r *Resolver) Resolve(ctx context.Context, raw string) (*Identity, error) {
	key := Normalize(raw)
	if key == "" {
		return nil, &client.ResolutionError{Identifier: raw, Reason: "empty identifier"}
	}

	for {
		if err := client.CheckCancelled(ctx); err != nil {
			return nil, err
		}

		if entry, ok := r.cache.Get(key); ok {
			lookupsTotal.WithLabelValues("cached").Inc()
			r.logger.Debug().Str("identifier", key).Msg("Identity cache hit")
			return &entry.Value, nil
		}

		ch := r.group.DoChan(key, func() (any, error) {
			return r.lookup(ctx, key)
		})

		var res singleflight.Result
		select {
		case res = <-ch:
		case <-ctx.Done():
			// Other callers sharing the lookup still receive its result.
			return nil, client.CheckCancelled(ctx)
		}

		if res.Err != nil {
			// The shared lookup ran under another caller's context.
			if res.Shared && errors.Is(res.Err, client.ErrCancelled) && ctx.Err() == nil {
				continue
			}
			lookupsTotal.WithLabelValues("error").Inc()
			return nil, r.wrap(raw, res.Err)
		}

		if res.Shared {
			lookupsTotal.WithLabelValues("shared").Inc()
		} else {
			lookupsTotal.WithLabelValues("resolved").Inc()
		}
		return &res.Val.(*cache.Entry[Identity]).Value, nil
	}
}

func (r *Resolver) lookup(ctx context.Context, key string) (*cache.Entry[Identity], error) {
	if entry, ok := r.cache.Get(key); ok {
		return entry, nil
	}

	ident, err := r.dir.Lookup(ctx, key)
	if err != nil {
		r.logger.Debug().Err(err).Str("identifier", key).Msg("Identity lookup failed")
		return nil, err
	}
	if ident.Handle == "" && !IsDID(key) {
		ident.Handle = key
	}

	entry := &cache.Entry[Identity]{Value: *ident, Expires: r.now().Add(r.ttl)}
	r.cache.Set(key, entry)
	if ident.DID != "" && ident.DID != key {
		r.cache.Set(ident.DID, entry)
	}
	return entry, nil
}

func (r *Resolver) wrap(raw string, err error) error {
	if errors.Is(err, client.ErrResolution) || errors.Is(err, client.ErrCancelled) {
		return err
	}
	return &client.ResolutionError{Identifier: raw, Reason: "lookup failed", Err: err}
}

// Purge drops any memoized identity for raw, including the mappings under
// its DID and handle.
func (r *Resolver) Purge(raw string) {
	key := Normalize(raw)
	if entry, ok := r.cache.Get(key); ok {
		r.cache.Delete(entry.Value.DID)
		if entry.Value.Handle != "" {
			r.cache.Delete(Normalize(entry.Value.Handle))
		}
	}
	r.cache.Delete(key)
}
