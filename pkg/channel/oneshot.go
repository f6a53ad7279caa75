package channel

import (
	"context"
	"sync"
)

// Oneshot hands exactly one value from a producer to any number of waiters.
// Sends after the first are ignored.
type Oneshot[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
}

// NewOneshot creates a pending oneshot.
func NewOneshot[T any]() *Oneshot[T] {
	return &Oneshot[T]{
		done: make(chan struct{}),
	}
}

// Send settles the oneshot with value. It reports whether this call settled
// it; later calls have no effect and return false.
func (o *Oneshot[T]) Send(value T) bool {
	sent := false
	o.once.Do(func() {
		o.value = value
		close(o.done)
		sent = true
	})
	return sent
}

// Done returns a channel that is closed once the oneshot is settled.
func (o *Oneshot[T]) Done() <-chan struct{} {
	return o.done
}

// TryRecv returns the value if the oneshot is already settled.
func (o *Oneshot[T]) TryRecv() (T, bool) {
	select {
	case <-o.done:
		return o.value, true
	default:
		var zero T
		return zero, false
	}
}

// Recv waits until the oneshot is settled or ctx ends. A settled value is
// preferred over a concurrently cancelled context.
func (o *Oneshot[T]) Recv(ctx context.Context) (T, error) {
	if v, ok := o.TryRecv(); ok {
		return v, nil
	}

	select {
	case <-o.done:
		return o.value, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
