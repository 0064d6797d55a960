package task

import (
	"fmt"

	"github.com/felixgeelhaar/keel/adapter/cli"
	"github.com/felixgeelhaar/keel/internal/hierarchy/application/commands"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	submitNotes     string
	submitDocuments []string
)

var submitCmd = &cobra.Command{
	Use:   "submit [task-id]",
	Short: "Submit your completion of a task for review",
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
		if err := app.SubmitCompletionHandler.Handle(cmd.Context(), commands.SubmitCompletionCommand{
			Session:   app.Session,
			TaskID:    taskID,
			Notes:     submitNotes,
			Documents: submitDocuments,
		}); err != nil {
			return fmt.Errorf("failed to submit completion: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Completion submitted for %s\n", taskID)
		return nil
	},
}

func init() {
	submitCmd.Flags().StringVar(&submitNotes, "notes", "", "completion notes")
	submitCmd.Flags().StringArrayVar(&submitDocuments, "document", nil, "supporting document reference, repeatable")
}
