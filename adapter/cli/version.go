package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Set with -ldflags "-X github.com/felixgeelhaar/keel/adapter/cli.Version=..."
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func newVersionCmd() *cobra.Command {
	var short bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if short {
				_, err := fmt.Fprintln(out, Version)
				return err
			}
			_, err := fmt.Fprintf(out, "keel %s (commit %s, built %s)\n", Version, Commit, BuildDate)
			return err
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "print only the version")
	return cmd
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
}
