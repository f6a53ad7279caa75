// Package metrics provides the Prometheus registry and HTTP exposition for
// skyscan. All metrics are defined in their respective packages (client,
// cache, ratelimit, pagination, identity, sink) to maintain modularity and
// avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Registry is the default Prometheus registry used by skyscan.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Limiter Metrics (pkg/ratelimit):
//   - skyscan_limiter_in_flight{host} (Gauge): Requests currently holding a slot
//   - skyscan_limiter_waiting{host} (Gauge): Requests queued for a slot
//   - skyscan_limiter_wait_seconds{host} (Histogram): Time spent waiting for a slot
//
// Cache Metrics (pkg/cache):
//   - skyscan_cache_hits_total{cache} (Counter): Live entries returned
//   - skyscan_cache_misses_total{cache, reason} (Counter): Misses by reason (absent, expired, reclaimed)
//   - skyscan_cache_mappings{cache} (Gauge): Mappings held, including dead ones not yet pruned
//
// Request Metrics (pkg/client):
//   - skyscan_requests_total{host, status} (Counter): Total requests by host and HTTP status
//   - skyscan_request_duration_seconds{host} (Histogram): Request duration including slot wait
//   - skyscan_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network, decode)
//
// Stream Metrics (pkg/pagination):
//   - skyscan_pages_fetched_total{stream} (Counter): Pages fetched
//   - skyscan_streams_finished_total{stream, outcome} (Counter): Streams ended (done, failed, cancelled)
//
// Identity Metrics (pkg/identity):
//   - skyscan_identity_lookups_total{result} (Counter): Lookups (cached, resolved, shared, error)
//
// Sink Metrics (pkg/sink):
//   - skyscan_sink_redis_added_total{stream} (Counter): Values newly added to Redis sets
//
// Example Prometheus Queries:
//
//   # Identity Cache Hit Rate
//   sum(rate(skyscan_cache_hits_total{cache="identity"}[5m])) /
//   (sum(rate(skyscan_cache_hits_total{cache="identity"}[5m])) + sum(rate(skyscan_cache_misses_total{cache="identity"}[5m])))
//
//   # Saturated Hosts
//   skyscan_limiter_waiting > 0
//
//   # Request Error Rate
//   rate(skyscan_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(skyscan_request_duration_seconds_bucket[5m]))

// Handler returns the HTTP handler exposing the default gatherer.
func Handler() http.Handler {
	return promhttp.Handler()
}

// NewMux returns a mux serving /metrics and /health.
func NewMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", healthHandler)
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// Serve exposes metrics on addr until ctx is done, then shuts the server
// down gracefully.
func Serve(ctx context.Context, addr string, logger zerolog.Logger) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           NewMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("Serving metrics")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown metrics server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	logger.Info().Msg("Metrics server stopped")
	return nil
}
