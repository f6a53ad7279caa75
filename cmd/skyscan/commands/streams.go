package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/skyscan/internal/app"
	"github.com/Sternrassler/skyscan/pkg/atproto"
	"github.com/Sternrassler/skyscan/pkg/constellation"
	"github.com/Sternrassler/skyscan/pkg/pagination"
)

func (c *CLI) newBlocksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "blocks <actor>",
		Short: "List the DIDs an actor blocks",
		Long:  "List the DIDs an actor blocks, read from the block records in the actor's repository.",
		Args:  cobra.ExactArgs(1),
		RunE: c.withApp(func(ctx context.Context, a *app.App, args []string) error {
			return drain(ctx, c, a, app.StreamBlocks, a.Records.Blocks(args[0]), app.Identity)
		}),
	}
}

func (c *CLI) newBlockedByCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "blocked-by <actor>",
		Short: "List the DIDs blocking an actor",
		Long:  "List the DIDs blocking an actor, read from the Constellation backlink index.",
		Args:  cobra.ExactArgs(1),
		RunE: c.withApp(func(ctx context.Context, a *app.App, args []string) error {
			return drain(ctx, c, a, app.StreamBlockedBy, a.Links.BlockedBy(args[0]), app.Identity)
		}),
	}
}

func (c *CLI) newLinksCmd() *cobra.Command {
	var params constellation.DistinctDIDsParams

	cmd := &cobra.Command{
		Use:   "links <target>",
		Short: "List the DIDs linking to a target",
		Long: "List the distinct DIDs whose records in --collection reference target at --path.\n" +
			"The target is passed to Constellation unchanged (a DID, an at:// URI or a URL).",
		Args: cobra.ExactArgs(1),
		RunE: c.withApp(func(ctx context.Context, a *app.App, args []string) error {
			params.Target = args[0]
			return drain(ctx, c, a, app.StreamLinks, a.Links.LinkingDIDs(params), app.Identity)
		}),
	}

	cmd.Flags().StringVar(&params.Collection, "collection", atproto.BlockCollection, "Collection of the linking records")
	cmd.Flags().StringVar(&params.Path, "path", constellation.BlockSubjectPath, "Path of the link inside the records")
	cmd.Flags().StringVar(&params.Cursor, "cursor", "", "Resume from a cursor of an earlier listing")

	return cmd
}

func (c *CLI) newRecordsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "records <actor> <collection>",
		Short: "List the record URIs of a collection in an actor's repository",
		Args:  cobra.ExactArgs(2),
		RunE: c.withApp(func(ctx context.Context, a *app.App, args []string) error {
			return drain(ctx, c, a, app.StreamRecords, a.Records.ListRecords(args[0], args[1]), func(r atproto.Record) string {
				return r.URI
			})
		}),
	}
}

// drain writes s to the application output, honouring --limit.
func drain[T any](ctx context.Context, c *CLI, a *app.App, name string, s *pagination.Stream[T], format func(T) string) error {
	start := time.Now()
	n, err := app.Drain(ctx, a.Out, name, s, c.flags.limit, format)

	event := c.logger.Info()
	if err != nil {
		event = c.logger.Debug()
	}
	event.
		Str("stream", name).
		Int("values", n).
		Int("pages", s.Pages()).
		Dur("duration", time.Since(start)).
		Msg("Stream drained")

	return err
}
