package pagination

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/Sternrassler/skyscan/pkg/client"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for pagination.
var (
	pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skyscan_pages_fetched_total",
		Help: "Total pages fetched by stream name",
	}, []string{"stream"})

	streamsFinishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skyscan_streams_finished_total",
		Help: "Total streams finished by stream name and outcome",
	}, []string{"stream", "outcome"}) // "done", "failed", "cancelled"
)

// State is the position of a stream in its lifecycle.
type State int

const (
	StateStart State = iota
	StateFetching
	StateYielding
	StateDone
	StateFailed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateFetching:
		return "fetching"
	case StateYielding:
		return "yielding"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Page is one decoded response of a listing API. An empty Cursor means the
// listing is complete.
type Page[T any] struct {
	Items  []T
	Cursor string
}

// FetchFunc fetches the page following cursor. The first call receives an
// empty cursor unless the stream was created WithCursor.
type FetchFunc[T any] func(ctx context.Context, cursor string) (Page[T], error)

// PrepareFunc runs once before the first fetch, typically to resolve the
// endpoint the fetches go to.
type PrepareFunc func(ctx context.Context) error

// StreamOption configures a Stream.
type StreamOption func(*streamConfig)

type streamConfig struct {
	name    string
	cursor  string
	prepare PrepareFunc
	logger  zerolog.Logger
}

// WithName sets the stream name used in logs and metrics.
func WithName(name string) StreamOption {
	return func(c *streamConfig) {
		c.name = name
	}
}

// WithCursor resumes a listing from cursor instead of its first page.
func WithCursor(cursor string) StreamOption {
	return func(c *streamConfig) {
		c.cursor = cursor
	}
}

// WithPrepare sets a step that runs before the first fetch.
func WithPrepare(prepare PrepareFunc) StreamOption {
	return func(c *streamConfig) {
		c.prepare = prepare
	}
}

// WithLogger sets the stream logger.
func WithLogger(logger zerolog.Logger) StreamOption {
	return func(c *streamConfig) {
		c.logger = logger
	}
}

// Stream is a lazy, forward-only sequence of page batches. It is not safe
// for concurrent use and cannot be restarted.
type Stream[T any] struct {
	fetch  FetchFunc[T]
	config streamConfig

	state  State
	cursor string
	batch  []T
	err    error
	pages  int
	items  int
	start  time.Time
}

// NewStream creates a stream over fetch. Nothing is fetched until Next.
func NewStream[T any](fetch FetchFunc[T], opts ...StreamOption) *Stream[T] {
	cfg := streamConfig{
		name:   "stream",
		logger: log.With().Str("component", "pagination").Logger(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Stream[T]{
		fetch:  fetch,
		config: cfg,
		state:  StateStart,
		cursor: cfg.cursor,
	}
}

// Next fetches the next page and reports whether a batch is available via
// Batch. It returns false once the listing is complete or has failed; check
// Err to tell the two apart.
func (s *Stream[T]) Next(ctx context.Context) bool {
	switch s.state {
	case StateDone, StateFailed:
		return false
	case StateYielding:
		if s.cursor == "" {
			return s.finish()
		}
		if err := client.CheckCancelled(ctx); err != nil {
			return s.fail(err)
		}
	case StateStart:
		s.start = time.Now()
		if err := client.CheckCancelled(ctx); err != nil {
			return s.fail(err)
		}
		if s.config.prepare != nil {
			if err := s.config.prepare(ctx); err != nil {
				return s.fail(err)
			}
			if err := client.CheckCancelled(ctx); err != nil {
				return s.fail(err)
			}
		}
	}

	s.state = StateFetching
	s.batch = nil

	page, err := s.fetch(ctx, s.cursor)
	if err != nil {
		return s.fail(err)
	}
	if err := client.CheckCancelled(ctx); err != nil {
		return s.fail(err)
	}

	s.pages++
	pagesFetchedTotal.WithLabelValues(s.config.name).Inc()

	s.config.logger.Debug().
		Str("stream", s.config.name).
		Int("page", s.pages).
		Int("items", len(page.Items)).
		Bool("has_cursor", page.Cursor != "").
		Msg("Fetched page")

	s.cursor = page.Cursor
	if s.cursor == "" && len(page.Items) == 0 {
		// An empty terminal page carries nothing to yield.
		return s.finish()
	}

	s.batch = page.Items
	s.items += len(page.Items)
	s.state = StateYielding
	return true
}

func (s *Stream[T]) finish() bool {
	s.state = StateDone
	s.batch = nil
	streamsFinishedTotal.WithLabelValues(s.config.name, "done").Inc()

	s.config.logger.Debug().
		Str("stream", s.config.name).
		Int("pages", s.pages).
		Int("items", s.items).
		Dur("duration", time.Since(s.start)).
		Msg("Stream complete")
	return false
}

func (s *Stream[T]) fail(err error) bool {
	s.state = StateFailed
	s.batch = nil
	s.err = err

	outcome := "failed"
	if isCancellation(err) {
		outcome = "cancelled"
	}
	streamsFinishedTotal.WithLabelValues(s.config.name, outcome).Inc()

	s.config.logger.Debug().
		Err(err).
		Str("stream", s.config.name).
		Int("pages", s.pages).
		Msg("Stream terminated")
	return false
}

// Batch returns the batch produced by the last successful Next.
func (s *Stream[T]) Batch() []T {
	return s.batch
}

// Err returns the error that terminated the stream, if any.
func (s *Stream[T]) Err() error {
	return s.err
}

// State returns the current lifecycle state.
func (s *Stream[T]) State() State {
	return s.state
}

// Pages returns the number of pages fetched so far.
func (s *Stream[T]) Pages() int {
	return s.pages
}

// Cursor returns the cursor the next fetch will send.
func (s *Stream[T]) Cursor() string {
	return s.cursor
}

// All returns an iterator over the remaining batches. If the stream fails,
// the error is yielded once with a nil batch and iteration ends.
func (s *Stream[T]) All(ctx context.Context) iter.Seq2[[]T, error] {
	return func(yield func([]T, error) bool) {
		for s.Next(ctx) {
			if !yield(s.Batch(), nil) {
				return
			}
		}
		if err := s.Err(); err != nil {
			yield(nil, err)
		}
	}
}

// Collect drains the stream and returns every item. On failure it returns
// the items gathered before the error together with the error.
func (s *Stream[T]) Collect(ctx context.Context) ([]T, error) {
	var items []T
	for s.Next(ctx) {
		items = append(items, s.Batch()...)
	}
	return items, s.Err()
}

func isCancellation(err error) bool {
	return errors.Is(err, client.ErrCancelled)
}
