// Package client provides the HTTP JSON transport shared by the remote
// service clients: per-host concurrency limiting, error classification and
// request metrics.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/skyscan/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skyscan_requests_total",
		Help: "Total requests by host and status",
	}, []string{"host", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "skyscan_request_duration_seconds",
		Help:    "Request duration in seconds by host, including time spent waiting for a slot",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"host"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skyscan_errors_total",
		Help: "Total client errors by class",
	}, []string{"class"})
)

// maxErrorBody bounds how much of an error response is kept as message.
const maxErrorBody = 512

// Client performs limited JSON GET requests.
type Client struct {
	httpClient *http.Client
	limiter    *ratelimit.HostLimiter
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// User-Agent header sent with every request (REQUIRED)
	UserAgent string

	// Concurrency
	MaxPerHost int // Max parallel requests per destination host

	// Timeout per HTTP round-trip
	Timeout time.Duration

	// Retry policy of the HTTP collaborator; zero MaxRetries disables retries
	Retry RetryConfig

	// HTTPClient overrides the HTTP collaborator entirely (optional)
	HTTPClient *http.Client
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(userAgent string) Config {
	return Config{
		UserAgent:  userAgent,
		MaxPerHost: ratelimit.DefaultMaxPerHost,
		Timeout:    30 * time.Second,
		Retry:      DefaultRetryConfig(),
	}
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.MaxPerHost < 0 {
		return nil, fmt.Errorf("max_per_host must be >= 0 (got %d)", cfg.MaxPerHost)
	}

	if cfg.Retry.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0 (got %d)", cfg.Retry.MaxRetries)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	logger := log.With().Str("component", "client").Logger()

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		if cfg.Retry.MaxRetries > 0 {
			httpClient = NewRetryingHTTPClient(cfg.Retry, cfg.Timeout, logger)
		} else {
			httpClient = &http.Client{Timeout: cfg.Timeout}
		}
	}

	return &Client{
		httpClient: httpClient,
		limiter:    ratelimit.NewHostLimiter(cfg.MaxPerHost, logger),
		config:     cfg,
		logger:     logger,
	}, nil
}

// GetJSON requests rawURL with query appended, once a slot for the
// destination host is free, and decodes the JSON response body into out.
//
// Errors are *CancellationError, *TransportError or *DecodeError. The host
// slot is released on every path.
func (c *Client) GetJSON(ctx context.Context, rawURL string, query url.Values, out any) error {
	return c.get(ctx, rawURL, query, "application/json", func(body io.Reader) error {
		return json.NewDecoder(body).Decode(out)
	})
}

// GetText requests rawURL like GetJSON but returns the response body as
// trimmed text. Bodies longer than maxBytes are a *DecodeError.
func (c *Client) GetText(ctx context.Context, rawURL string, maxBytes int64) (string, error) {
	var text string
	err := c.get(ctx, rawURL, nil, "text/plain", func(body io.Reader) error {
		data, err := io.ReadAll(io.LimitReader(body, maxBytes+1))
		if err != nil {
			return err
		}
		if int64(len(data)) > maxBytes {
			return fmt.Errorf("body exceeds %d bytes", maxBytes)
		}
		text = strings.TrimSpace(string(data))
		return nil
	})
	return text, err
}

func (c *Client) get(ctx context.Context, rawURL string, query url.Values, accept string, decode func(io.Reader) error) error {
	if err := CheckCancelled(ctx); err != nil {
		return err
	}

	target, err := buildURL(rawURL, query)
	if err != nil {
		return &TransportError{URL: rawURL, ErrorClass: ErrorClassClient, Err: err}
	}

	host := ratelimit.KeyFor(target)
	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(host).Observe(time.Since(startTime).Seconds())
	}()

	release, err := c.limiter.Acquire(ctx, host)
	if err != nil {
		// Acquire fails only when ctx ends while queued.
		return &CancellationError{Err: err}
	}
	defer release()

	return c.do(ctx, host, target, accept, decode)
}

func (c *Client) do(ctx context.Context, host, target, accept string, decode func(io.Reader) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return &TransportError{URL: target, ErrorClass: ErrorClassClient, Err: err}
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", accept)

	c.logger.Debug().
		Str("host", host).
		Str("url", target).
		Msg("Executing request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return &CancellationError{Err: ctxErr}
		}
		c.logger.Warn().Err(err).Str("url", target).Msg("HTTP request failed")
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(host, "network_error").Inc()
		return &TransportError{URL: target, ErrorClass: ErrorClassNetwork, Err: err}
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(host, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errClass := ClassifyStatus(resp.StatusCode)
		if errClass == "" {
			errClass = ErrorClassServer
		}
		errorsTotal.WithLabelValues(string(errClass)).Inc()

		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn().
			Str("url", target).
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("Request error")

		return &TransportError{
			URL:        target,
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Message:    strings.TrimSpace(string(body)),
		}
	}

	if err := decode(resp.Body); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return &CancellationError{Err: ctxErr}
		}
		errorsTotal.WithLabelValues("decode").Inc()
		return &DecodeError{URL: target, Err: err}
	}

	return nil
}

// buildURL appends query to rawURL, keeping any query already present.
// Empty values are dropped so absent optional parameters (like a cursor)
// are not sent.
func buildURL(rawURL string, query url.Values) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q must be absolute", rawURL)
	}

	if len(query) > 0 {
		q := u.Query()
		for key, values := range query {
			for _, v := range values {
				if v != "" {
					q.Add(key, v)
				}
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Limiter returns the per-host limiter shared by all requests of this client.
func (c *Client) Limiter() *ratelimit.HostLimiter {
	return c.limiter
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Close closes idle connections of the HTTP collaborator.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
