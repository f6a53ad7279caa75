// Package pagination walks cursor-based listing APIs as lazy, forward-only
// streams of page batches.
//
// A remote listing API returns a batch of items plus an opaque cursor; the
// cursor is sent back verbatim to get the next page, and its absence ends
// the listing. Stream turns that loop into a pull-style sequence:
//
//	s := pagination.NewStream(fetchPage,
//		pagination.WithPrepare(resolveIdentity),
//		pagination.WithName("blocks"),
//	)
//	for s.Next(ctx) {
//		handle(s.Batch())
//	}
//	if err := s.Err(); err != nil {
//		return err
//	}
//
// Pacing is driven by the caller: a page is fetched only when Next is
// called. A listing that never stops returning a cursor produces an
// unbounded stream that ends only through cancellation.
//
// The stream moves through these states:
//
//	Start → Fetching → Yielding → {Fetching | Done}
//
// with Failed reachable from any state. Cancellation is checked before every
// fetch, after the prepare step and after every fetch. The first error
// terminates the stream and is reported by Err. Batches already yielded stay
// valid.
//
// Relay runs a stream in the background and hands its batches to a reader
// through a channel.Receiver, for consumers that want fetching to run ahead
// of processing.
package pagination
