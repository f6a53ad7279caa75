package client

import (
	"context"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

// RetryConfig configures the optional retrying HTTP collaborator.
// The client itself never retries; retries happen inside the transport.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	// Zero disables retries.
	MaxRetries int

	// WaitMin is the minimum backoff between attempts.
	WaitMin time.Duration

	// WaitMax is the maximum backoff between attempts.
	WaitMax time.Duration
}

// DefaultRetryConfig returns the default retry configuration: no retries.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 0,
		WaitMin:    1 * time.Second,
		WaitMax:    30 * time.Second,
	}
}

// leveledZerolog adapts zerolog to retryablehttp.LeveledLogger.
type leveledZerolog struct {
	logger zerolog.Logger
}

// Error is logged at warn level; the request may still succeed on retry.
func (l leveledZerolog) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}

func (l leveledZerolog) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}

func (l leveledZerolog) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l leveledZerolog) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

// retryPolicy retries server, rate limit and network errors, never client
// errors or cancelled requests.
func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		// Defers to retryablehttp for unrecoverable errors (bad scheme, TLS).
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	if resp.StatusCode == http.StatusNotImplemented {
		return false, nil
	}
	return shouldRetry(ClassifyStatus(resp.StatusCode)), nil
}

// NewRetryingHTTPClient returns a standard *http.Client whose transport
// retries according to cfg, backed by hashicorp/go-retryablehttp.
func NewRetryingHTTPClient(cfg RetryConfig, timeout time.Duration, logger zerolog.Logger) *http.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = cfg.WaitMin
	retryClient.RetryWaitMax = cfg.WaitMax
	retryClient.CheckRetry = retryPolicy
	retryClient.Logger = retryablehttp.LeveledLogger(leveledZerolog{logger: logger})
	// Hand the last response back to the caller so status handling stays in one place.
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	client := retryClient.StandardClient()
	client.Timeout = timeout
	return client
}
