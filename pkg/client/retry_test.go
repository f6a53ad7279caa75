package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxRetries != 0 {
		t.Errorf("MaxRetries = %d, want 0 (no retries by default)", config.MaxRetries)
	}
	if config.WaitMin != 1*time.Second {
		t.Errorf("WaitMin = %v, want 1s", config.WaitMin)
	}
	if config.WaitMax != 30*time.Second {
		t.Errorf("WaitMax = %v, want 30s", config.WaitMax)
	}
}

func TestRetryPolicy(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		expected bool
	}{
		{name: "success", status: http.StatusOK, expected: false},
		{name: "not found", status: http.StatusNotFound, expected: false},
		{name: "too many requests", status: http.StatusTooManyRequests, expected: true},
		{name: "internal server error", status: http.StatusInternalServerError, expected: true},
		{name: "not implemented", status: http.StatusNotImplemented, expected: false},
		{name: "bad gateway", status: http.StatusBadGateway, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retry, err := retryPolicy(context.Background(), &http.Response{StatusCode: tt.status}, nil)
			if err != nil {
				t.Fatalf("retryPolicy() error = %v", err)
			}
			if retry != tt.expected {
				t.Errorf("retryPolicy(%d) = %v, want %v", tt.status, retry, tt.expected)
			}
		})
	}
}

func TestRetryPolicy_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	retry, err := retryPolicy(ctx, &http.Response{StatusCode: http.StatusBadGateway}, nil)
	if retry {
		t.Error("cancelled requests must not be retried")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestNewRetryingHTTPClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := RetryConfig{MaxRetries: 3, WaitMin: time.Millisecond, WaitMax: 5 * time.Millisecond}
	httpClient := NewRetryingHTTPClient(cfg, 5*time.Second, zerolog.Nop())

	resp, err := httpClient.Get(server.URL)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestNewRetryingHTTPClient_PassesThroughExhaustedResponse(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	cfg := RetryConfig{MaxRetries: 2, WaitMin: time.Millisecond, WaitMax: time.Millisecond}
	httpClient := NewRetryingHTTPClient(cfg, 5*time.Second, zerolog.Nop())

	resp, err := httpClient.Get(server.URL)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d, want 502", resp.StatusCode)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3 (1 + 2 retries)", got)
	}
}

func TestNewRetryingHTTPClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	cfg := RetryConfig{MaxRetries: 3, WaitMin: time.Millisecond, WaitMax: time.Millisecond}
	resp, err := NewRetryingHTTPClient(cfg, 5*time.Second, zerolog.Nop()).Get(server.URL)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	resp.Body.Close()

	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}
