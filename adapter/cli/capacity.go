package cli

import (
	"fmt"

	"github.com/felixgeelhaar/keel/internal/hierarchy/application/queries"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var capacityCmd = &cobra.Command{
	Use:   "capacity [node-id]",
	Short: "Show the weight budget of a milestone or sub-milestone",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := RequireApp()
		if err != nil {
			return err
		}
		nodeID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid node ID: %w", err)
		}
		view, err := app.GetCapacityHandler.Handle(cmd.Context(), queries.GetCapacityQuery{NodeID: nodeID})
		if err != nil {
			return fmt.Errorf("failed to get capacity: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Node %s\n", view.NodeID)
		fmt.Fprintf(out, "  allocated: %.2f\n", view.Allocated)
		fmt.Fprintf(out, "  remaining: %.2f\n", view.Remaining)
		fmt.Fprintf(out, "  state: %s\n", view.State)
		if view.Violation != "" {
			fmt.Fprintf(out, "  violation: %s\n", view.Violation)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(capacityCmd)
}
