package milestone

import (
	"fmt"

	"github.com/felixgeelhaar/keel/adapter/cli"
	"github.com/felixgeelhaar/keel/internal/hierarchy/application/commands"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete [milestone-id]",
	Short: "Delete a milestone and everything under it",
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

		n, err := app.DeleteMilestoneHandler.Handle(cmd.Context(), commands.DeleteMilestoneCommand{
			Session:     app.Session,
			MilestoneID: milestoneID,
		})
		if err != nil {
			return fmt.Errorf("failed to delete milestone: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Milestone deleted: %s (%d nodes)\n", milestoneID, n)
		return nil
	},
}
