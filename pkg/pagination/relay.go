package pagination

import (
	"context"

	"github.com/Sternrassler/skyscan/pkg/channel"
)

// Result is one relayed batch, or the error that ended the stream.
type Result[T any] struct {
	Batch []T
	Err   error
}

// Relay drains s in a new goroutine and forwards each batch through a
// channel. If the stream fails, a final Result carrying the error is sent.
// The channel is closed once the stream ends.
//
// Fetching runs ahead of the reader without bound; cancel ctx to stop the
// goroutine early.
func Relay[T any](ctx context.Context, s *Stream[T]) *channel.Receiver[Result[T]] {
	tx, rx := channel.New[Result[T]]()

	go func() {
		defer tx.Close()
		for s.Next(ctx) {
			tx.Send(Result[T]{Batch: s.Batch()})
		}
		if err := s.Err(); err != nil {
			tx.Send(Result[T]{Err: err})
		}
	}()

	return rx
}
