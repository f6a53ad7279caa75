// Package sink writes streamed values to their destinations: text or JSON
// lines on an io.Writer, or a Redis set per stream.
//
// Writers are safe for concurrent use, so several streams may share one.
package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// Writer receives batches of values produced by a named stream.
type Writer interface {
	Write(ctx context.Context, stream string, values []string) error
	Close() error
}

// Text writes one value per line.
type Text struct {
	mu sync.Mutex
	w  io.Writer
}

var _ Writer = (*Text)(nil)

// NewText creates a text writer on w.
func NewText(w io.Writer) *Text {
	return &Text{w: w}
}

// Write implements Writer.
func (t *Text) Write(ctx context.Context, stream string, values []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, v := range values {
		if _, err := fmt.Fprintln(t.w, v); err != nil {
			return fmt.Errorf("write %s: %w", stream, err)
		}
	}
	return nil
}

// Close implements Writer. The underlying io.Writer is left open.
func (t *Text) Close() error {
	return nil
}

// Line is one JSON lines record.
type Line struct {
	Stream string `json:"stream"`
	Value  string `json:"value"`
}

// JSONLines writes one Line object per value.
type JSONLines struct {
	mu  sync.Mutex
	enc *json.Encoder
}

var _ Writer = (*JSONLines)(nil)

// NewJSONLines creates a JSON lines writer on w.
func NewJSONLines(w io.Writer) *JSONLines {
	return &JSONLines{enc: json.NewEncoder(w)}
}

// Write implements Writer.
func (j *JSONLines) Write(ctx context.Context, stream string, values []string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	for _, v := range values {
		if err := j.enc.Encode(Line{Stream: stream, Value: v}); err != nil {
			return fmt.Errorf("write %s: %w", stream, err)
		}
	}
	return nil
}

// Close implements Writer. The underlying io.Writer is left open.
func (j *JSONLines) Close() error {
	return nil
}

// Multi fans every batch out to all writers, in order. The first failing
// writer aborts the batch.
type Multi []Writer

var _ Writer = Multi(nil)

// Write implements Writer.
func (m Multi) Write(ctx context.Context, stream string, values []string) error {
	for _, w := range m {
		if err := w.Write(ctx, stream, values); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every writer and joins their errors.
func (m Multi) Close() error {
	var errs []error
	for _, w := range m {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
