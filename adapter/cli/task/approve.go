package task

import (
	"fmt"

	"github.com/felixgeelhaar/keel/adapter/cli"
	"github.com/felixgeelhaar/keel/internal/hierarchy/application/commands"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var approveCmd = &cobra.Command{
	Use:   "approve [task-id]",
	Short: "Approve a task waiting for supervisor approval",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return decide(cmd, args[0], true)
	},
}

var rejectCmd = &cobra.Command{
	Use:   "reject [task-id]",
	Short: "Reject a task waiting for supervisor approval",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return decide(cmd, args[0], false)
	},
}

func decide(cmd *cobra.Command, rawID string, approve bool) error {
	app, err := cli.RequireApp()
	if err != nil {
		return err
	}
	taskID, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid task ID: %w", err)
	}
	status, err := app.DecideApprovalHandler.Handle(cmd.Context(), commands.DecideApprovalCommand{
		Session: app.Session,
		TaskID:  taskID,
		Approve: approve,
	})
	if err != nil {
		return fmt.Errorf("failed to decide approval: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Task %s is now %s\n", taskID, status)
	return nil
}
