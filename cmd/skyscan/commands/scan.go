package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/skyscan/internal/app"
)

func (c *CLI) newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan <actor>",
		Short: "Stream both block directions of an actor and report mutual blocks",
		Long: "Stream the blocks and blocked-by listings of an actor concurrently and print a summary.\n" +
			"With --redis-addr the values are added to Redis sets as they arrive.",
		Args: cobra.ExactArgs(1),
		RunE: c.withApp(func(ctx context.Context, a *app.App, args []string) error {
			result, err := a.Scan(ctx, args[0], c.flags.limit)
			if err != nil {
				return err
			}

			out := c.rootCmd.OutOrStdout()
			if c.flags.output == app.FormatJSON {
				return json.NewEncoder(out).Encode(result)
			}

			_, _ = fmt.Fprintf(out, "actor:      %s\n", result.Actor)
			_, _ = fmt.Fprintf(out, "blocks:     %d\n", result.Blocks)
			_, _ = fmt.Fprintf(out, "blocked by: %d\n", result.BlockedBy)
			_, _ = fmt.Fprintf(out, "mutual:     %d\n", len(result.Mutual))
			for _, did := range result.Mutual {
				_, _ = fmt.Fprintf(out, "  %s\n", did)
			}
			return nil
		}),
	}
}
