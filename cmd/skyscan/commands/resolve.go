package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/skyscan/internal/app"
)

type resolved struct {
	DID    string `json:"did"`
	Handle string `json:"handle,omitempty"`
	PDS    string `json:"pds"`
}

func (c *CLI) newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <actor>",
		Short: "Resolve a handle or DID to its DID and PDS endpoint",
		Args:  cobra.ExactArgs(1),
		RunE: c.withApp(func(ctx context.Context, a *app.App, args []string) error {
			ident, err := a.Resolver.Resolve(ctx, args[0])
			if err != nil {
				return err
			}

			out := c.rootCmd.OutOrStdout()
			if c.flags.output == app.FormatJSON {
				return json.NewEncoder(out).Encode(resolved{DID: ident.DID, Handle: ident.Handle, PDS: ident.PDS})
			}

			_, _ = fmt.Fprintf(out, "did:    %s\n", ident.DID)
			if ident.Handle != "" {
				_, _ = fmt.Fprintf(out, "handle: %s\n", ident.Handle)
			}
			_, _ = fmt.Fprintf(out, "pds:    %s\n", ident.PDS)
			return nil
		}),
	}
}
