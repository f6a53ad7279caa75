// Package app wires the skyscan components together from a Config.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/skyscan/internal/config"
	"github.com/Sternrassler/skyscan/pkg/atproto"
	"github.com/Sternrassler/skyscan/pkg/client"
	"github.com/Sternrassler/skyscan/pkg/constellation"
	"github.com/Sternrassler/skyscan/pkg/identity"
	"github.com/Sternrassler/skyscan/pkg/sink"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// App holds the wired components. The HTTP client (and with it the per-host
// limiter) and the identity resolver are shared by every stream.
type App struct {
	Config   config.Config
	HTTP     *client.Client
	Resolver *identity.Resolver
	Records  *atproto.Client
	Links    *constellation.Client

	// Out receives streamed values: stdout, plus Redis when exporting.
	Out sink.Writer

	// Export is the Redis sink alone, or nil when not exporting.
	Export sink.Writer

	redis  *redis.Client
	logger zerolog.Logger
}

// Option configures New.
type Option func(*options)

type options struct {
	stdout  io.Writer
	format  string
	dirOpts []identity.DirectoryOption
}

// WithOutput sets where and how streamed values are printed.
func WithOutput(w io.Writer, format string) Option {
	return func(o *options) {
		o.stdout = w
		o.format = format
	}
}

// WithDirectoryOptions passes extra options to the identity directory.
func WithDirectoryOptions(opts ...identity.DirectoryOption) Option {
	return func(o *options) {
		o.dirOpts = append(o.dirOpts, opts...)
	}
}

// New builds an App from cfg. When cfg.RedisAddr is set, Redis must be
// reachable.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	o := options{stdout: io.Discard, format: FormatText}
	for _, opt := range opts {
		opt(&o)
	}

	logger := log.With().Str("component", "app").Logger()

	clientCfg := client.DefaultConfig(cfg.UserAgent)
	clientCfg.MaxPerHost = cfg.MaxPerHost
	clientCfg.Timeout = cfg.HTTPTimeout
	clientCfg.Retry.MaxRetries = cfg.MaxRetries

	httpClient, err := client.New(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create http client: %w", err)
	}

	dirOpts := append([]identity.DirectoryOption{identity.WithPLCURL(cfg.PLCURL)}, o.dirOpts...)
	resolver := identity.NewResolver(
		identity.NewHTTPDirectory(httpClient, dirOpts...),
		identity.WithTTL(cfg.IdentityTTL),
	)

	a := &App{
		Config:   cfg,
		HTTP:     httpClient,
		Resolver: resolver,
		Records:  atproto.NewClient(httpClient, resolver, atproto.WithPageSize(cfg.PageSize)),
		Links:    constellation.NewClient(httpClient, resolver, constellation.WithBaseURL(cfg.ConstellationURL)),
		logger:   logger,
	}

	var out sink.Writer
	switch o.format {
	case FormatText, "":
		out = sink.NewText(o.stdout)
	case FormatJSON:
		out = sink.NewJSONLines(o.stdout)
	default:
		httpClient.Close()
		return nil, fmt.Errorf("unknown output format %q (want %s or %s)", o.format, FormatText, FormatJSON)
	}

	if cfg.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := a.redis.Ping(pingCtx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		logger.Info().Str("addr", cfg.RedisAddr).Str("key", cfg.RedisKey).Msg("Exporting to Redis")

		a.Export = sink.NewRedisSet(a.redis, cfg.RedisKey)
		out = sink.Multi{out, a.Export}
	}
	a.Out = out

	return a, nil
}

// Close releases the HTTP and Redis connections.
func (a *App) Close() error {
	var errs []error
	if a.Out != nil {
		errs = append(errs, a.Out.Close())
	}
	if err := a.HTTP.Close(); err != nil {
		errs = append(errs, err)
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	return errors.Join(errs...)
}
