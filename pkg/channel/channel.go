package channel

import (
	"context"
	"iter"
	"sync"
)

// message is one node of the chain. A nil next marks the end of the stream.
type message[T any] struct {
	value T
	next  *Oneshot[message[T]]
}

// Sender is the producing half of a channel.
type Sender[T any] struct {
	mu     sync.Mutex
	tail   *Oneshot[message[T]]
	closed bool
}

// Receiver is the consuming half of a channel. Concurrent calls are
// serialized, so no value is observed twice.
type Receiver[T any] struct {
	// lock is a one-slot semaphore so waiting readers can honor ctx.
	lock     chan struct{}
	head     *Oneshot[message[T]]
	received int
}

// New creates a connected sender/receiver pair.
func New[T any]() (*Sender[T], *Receiver[T]) {
	head := NewOneshot[message[T]]()
	return &Sender[T]{tail: head}, &Receiver[T]{lock: make(chan struct{}, 1), head: head}
}

// Send appends value to the stream without blocking. It returns false if the
// channel was already closed, in which case value is dropped.
func (s *Sender[T]) Send(value T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	next := NewOneshot[message[T]]()
	s.tail.Send(message[T]{value: value, next: next})
	s.tail = next
	return true
}

// Close ends the stream. Closing more than once is a no-op.
func (s *Sender[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.tail.Send(message[T]{})
}

// Closed reports whether Close has been called.
func (s *Sender[T]) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}

// Recv returns the next value. At the end of the stream it returns ok=false
// with a nil error, and keeps doing so on later calls. If ctx ends before a
// value is available, nothing is consumed and ctx.Err() is returned.
func (r *Receiver[T]) Recv(ctx context.Context) (value T, ok bool, err error) {
	select {
	case r.lock <- struct{}{}:
	case <-ctx.Done():
		return value, false, ctx.Err()
	}
	defer func() { <-r.lock }()

	msg, err := r.head.Recv(ctx)
	if err != nil {
		return value, false, err
	}
	if msg.next == nil {
		return value, false, nil
	}

	r.head = msg.next
	r.received++
	return msg.value, true, nil
}

// Received returns the number of values consumed so far.
func (r *Receiver[T]) Received() int {
	r.lock <- struct{}{}
	defer func() { <-r.lock }()

	return r.received
}

// All returns an iterator over the remaining values. Iteration stops at the
// end of the stream, or after yielding ctx's error.
func (r *Receiver[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			v, ok, err := r.Recv(ctx)
			if err != nil {
				yield(v, err)
				return
			}
			if !ok {
				return
			}
			if !yield(v, nil) {
				return
			}
		}
	}
}
