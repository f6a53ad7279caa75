package app

import (
	"context"

	"github.com/Sternrassler/skyscan/pkg/client"
	"github.com/Sternrassler/skyscan/pkg/pagination"
	"github.com/Sternrassler/skyscan/pkg/sink"
)

// Drain relays s into w under name until the stream ends or limit values
// were written (limit <= 0 means no limit). Fetching runs ahead of the
// writes; it is stopped when Drain returns. It returns the number of values
// written.
func Drain[T any](ctx context.Context, w sink.Writer, name string, s *pagination.Stream[T], limit int, format func(T) string) (int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	count := 0
	for res, err := range pagination.Relay(ctx, s).All(ctx) {
		if err != nil {
			return count, &client.CancellationError{Err: err}
		}
		if res.Err != nil {
			return count, res.Err
		}

		values := make([]string, 0, len(res.Batch))
		for _, item := range res.Batch {
			if limit > 0 && count+len(values) >= limit {
				break
			}
			values = append(values, format(item))
		}

		if err := w.Write(ctx, name, values); err != nil {
			return count, err
		}
		count += len(values)

		if limit > 0 && count >= limit {
			return count, nil
		}
	}
	return count, nil
}

// Identity formats string values unchanged.
func Identity(s string) string {
	return s
}
