package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the skyscan release, overridden at build time with
// -ldflags "-X github.com/Sternrassler/skyscan/cmd/skyscan/commands.Version=...".
var Version = "0.1.0"

func (c *CLI) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the application version",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "skyscan version %s\n", Version)
		},
	}
}
