package milestone

import (
	"fmt"

	"github.com/felixgeelhaar/keel/adapter/cli"
	"github.com/felixgeelhaar/keel/internal/hierarchy/application/queries"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show [milestone-id]",
	Short: "Show a milestone hierarchy with computed progress",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		milestoneID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid milestone ID: %w", err)
		}

		view, err := app.GetHierarchyHandler.Handle(cmd.Context(), queries.GetHierarchyQuery{MilestoneID: milestoneID})
		if err != nil {
			return fmt.Errorf("failed to load milestone: %w", err)
		}
		cli.PrintHierarchy(cmd.OutOrStdout(), view)
		return nil
	},
}
