package task

import (
	"github.com/spf13/cobra"
)

// Cmd is the task command group
var Cmd = &cobra.Command{
	Use:   "task",
	Short: "Manage action items",
	Long:  `Add, approve, progress, submit, review, and remove weighted tasks.`,
}

func init() {
	Cmd.AddCommand(addCmd)
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(approveCmd)
	Cmd.AddCommand(rejectCmd)
	Cmd.AddCommand(statusCmd)
	Cmd.AddCommand(progressCmd)
	Cmd.AddCommand(submitCmd)
	Cmd.AddCommand(reviewCmd)
	Cmd.AddCommand(deleteCmd)
}
