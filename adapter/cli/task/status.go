package task

import (
	"fmt"
	"strconv"

	"github.com/felixgeelhaar/keel/adapter/cli"
	"github.com/felixgeelhaar/keel/internal/hierarchy/application/commands"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [node-id] [status]",
	Short: "Move a task or sub-milestone to a new status",
	Long: `Move a node to a new status: not_started, in_progress, on_hold or
completed. Leaving a terminal status needs a supervisor.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		nodeID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid node ID: %w", err)
		}
		if err := app.UpdateStatusHandler.Handle(cmd.Context(), commands.UpdateStatusCommand{
			Session: app.Session,
			NodeID:  nodeID,
			Status:  args[1],
		}); err != nil {
			return fmt.Errorf("failed to update status: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Node %s is now %s\n", nodeID, args[1])
		return nil
	},
}

var progressCmd = &cobra.Command{
	Use:   "progress [task-id] [percent]",
	Short: "Report a task's progress",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		taskID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid task ID: %w", err)
		}
		progress, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid progress: %w", err)
		}
		milestoneProgress, err := app.UpdateProgressHandler.Handle(cmd.Context(), commands.UpdateProgressCommand{
			Session:  app.Session,
			TaskID:   taskID,
			Progress: progress,
		})
		if err != nil {
			return fmt.Errorf("failed to update progress: %w", err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Task %s at %.1f%%\n", taskID, progress)
		fmt.Fprintf(out, "  milestone progress: %.1f%%\n", milestoneProgress)
		return nil
	},
}
