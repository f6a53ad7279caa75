package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors matched with errors.Is against the typed errors below.
var (
	// ErrResolution matches identities or documents that could not be resolved.
	ErrResolution = errors.New("identity resolution failed")

	// ErrTransport matches network failures and non-success HTTP status codes.
	ErrTransport = errors.New("transport error")

	// ErrCancelled matches operations aborted by their context.
	ErrCancelled = errors.New("operation cancelled")

	// ErrDecode matches malformed responses.
	ErrDecode = errors.New("malformed response")
)

// ErrorClass represents a classification of transport errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 Too Many Requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// ClassifyStatus maps an HTTP status code to an ErrorClass.
// Returns an empty class for non-error status codes.
func ClassifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// ResolutionError reports an identity that could not be resolved to a
// document, or a document without the required service endpoint.
type ResolutionError struct {
	Identifier string
	Reason     string
	Err        error
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolve %s: %s: %v", e.Identifier, e.Reason, e.Err)
	}
	return fmt.Sprintf("resolve %s: %s", e.Identifier, e.Reason)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrResolution.
func (e *ResolutionError) Is(target error) bool {
	return target == ErrResolution
}

// TransportError reports a failed request: either the network round-trip
// failed (StatusCode 0) or the server answered with a non-success status.
type TransportError struct {
	URL        string
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s error requesting %s: %v", e.ErrorClass, e.URL, e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("HTTP %d (%s) from %s: %s", e.StatusCode, e.ErrorClass, e.URL, e.Message)
	}
	return fmt.Sprintf("HTTP %d (%s) from %s", e.StatusCode, e.ErrorClass, e.URL)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrTransport.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// CancellationError reports that an operation observed its context ending.
// It unwraps to the context error, so errors.Is(err, context.Canceled) holds.
type CancellationError struct {
	Err error
}

// Error implements the error interface.
func (e *CancellationError) Error() string {
	return fmt.Sprintf("operation cancelled: %v", e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *CancellationError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrCancelled.
func (e *CancellationError) Is(target error) bool {
	return target == ErrCancelled
}

// DecodeError reports a response body that could not be decoded.
type DecodeError struct {
	URL string
	Err error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode response from %s: %v", e.URL, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrDecode.
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

// CheckCancelled returns a CancellationError if ctx is done, nil otherwise.
func CheckCancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return &CancellationError{Err: err}
	}
	return nil
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassClient:
		// 4xx errors will not change on retry
		return false
	case ErrorClassServer:
		return true
	case ErrorClassRateLimit:
		return true
	case ErrorClassNetwork:
		return true
	default:
		return false
	}
}
