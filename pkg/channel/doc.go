// Package channel provides a single-value handoff (Oneshot) and an unbounded,
// single-consumer channel built from a chain of oneshots.
//
// A Channel turns a push-style producer into a pull-style sequence:
//
//	tx, rx := channel.New[[]string]()
//
//	go func() {
//		defer tx.Close()
//		for page := range pages {
//			tx.Send(page)
//		}
//	}()
//
//	for batch, err := range rx.All(ctx) {
//		...
//	}
//
// Sends never block. Every send allocates one node, so the backlog grows with
// the number of values the reader has not consumed yet. Values are delivered
// strictly in send order, each exactly once, followed by a single
// end-of-stream signal after Close. The channel carries no error signal of its
// own; callers that need one send a result type.
package channel
