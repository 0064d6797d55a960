package task

import (
	"fmt"

	"github.com/felixgeelhaar/keel/adapter/cli"
	"github.com/felixgeelhaar/keel/internal/hierarchy/application/commands"
	"github.com/felixgeelhaar/keel/internal/hierarchy/domain"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete [task-id]",
	Short: "Remove a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		taskID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid task ID: %w", err)
		}
		if _, err := app.RemoveNodeHandler.Handle(cmd.Context(), commands.RemoveNodeCommand{
			Session: app.Session,
			NodeID:  taskID,
			Kind:    domain.KindTask,
		}); err != nil {
			return fmt.Errorf("failed to remove task: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Task removed: %s\n", taskID)
		return nil
	},
}
