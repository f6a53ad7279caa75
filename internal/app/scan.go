package app

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/skyscan/pkg/sink"
)

// Stream names used in sinks, logs and metrics.
const (
	StreamBlocks    = "blocks"
	StreamBlockedBy = "blocked_by"
	StreamLinks     = "links"
	StreamRecords   = "records"
)

// ScanResult summarises both block directions of one actor.
type ScanResult struct {
	Actor     string        `json:"actor"`
	Blocks    int           `json:"blocks"`
	BlockedBy int           `json:"blocked_by"`
	Mutual    []string      `json:"mutual"`
	Duration  time.Duration `json:"duration"`
}

// Scan runs the blocks and blocked-by streams of actor concurrently. Values
// go to the Redis export when enabled. The first failing stream cancels the
// other.
func (a *App) Scan(ctx context.Context, actor string, limit int) (*ScanResult, error) {
	start := time.Now()
	collected := sink.NewMemory()

	var w sink.Writer = collected
	if a.Export != nil {
		w = sink.Multi{collected, a.Export}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := Drain(gctx, w, StreamBlocks, a.Records.Blocks(actor), limit, Identity)
		return err
	})
	g.Go(func() error {
		_, err := Drain(gctx, w, StreamBlockedBy, a.Links.BlockedBy(actor), limit, Identity)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	blocks := collected.Values(StreamBlocks)
	blockedBy := collected.Values(StreamBlockedBy)

	result := &ScanResult{
		Actor:     actor,
		Blocks:    len(blocks),
		BlockedBy: len(blockedBy),
		Mutual:    intersect(blocks, blockedBy),
		Duration:  time.Since(start),
	}

	a.logger.Info().
		Str("actor", actor).
		Int("blocks", result.Blocks).
		Int("blocked_by", result.BlockedBy).
		Int("mutual", len(result.Mutual)).
		Dur("duration", result.Duration).
		Msg("Scan complete")

	return result, nil
}

// intersect returns the sorted values present in both a and b.
func intersect(a, b []string) []string {
	seen := make(map[string]struct{}, len(a))
	for _, v := range a {
		seen[v] = struct{}{}
	}

	both := []string{}
	for _, v := range b {
		if _, ok := seen[v]; ok {
			both = append(both, v)
			delete(seen, v)
		}
	}
	sort.Strings(both)
	return both
}
