package cli

import (
	"fmt"
	"sort"

	"github.com/felixgeelhaar/keel/pkg/observability"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check database, cache and KPI directory health",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := RequireApp()
		if err != nil {
			return err
		}
		health := app.Health.GetOverallHealth(cmd.Context())

		names := make([]string, 0, len(health.Checks))
		for name := range health.Checks {
			names = append(names, name)
		}
		sort.Strings(names)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "status: %s\n", health.Status)
		for _, name := range names {
			check := health.Checks[name]
			fmt.Fprintf(out, "  %-14s %s", name, check.Status)
			if check.Message != "" {
				fmt.Fprintf(out, " (%s)", check.Message)
			}
			fmt.Fprintln(out)
		}
		if health.Status == observability.HealthStatusUnhealthy {
			return fmt.Errorf("unhealthy")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
