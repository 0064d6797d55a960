package task

import (
	"fmt"

	"github.com/felixgeelhaar/keel/adapter/cli"
	"github.com/felixgeelhaar/keel/internal/hierarchy/application/commands"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	reviewUser     string
	reviewGrade    float64
	reviewReject   bool
	reviewComments string
)

var reviewCmd = &cobra.Command{
	Use:   "review [task-id]",
	Short: "Grade an assignee's completion",
	Long: `Approve an assignee's submitted completion with a grade from 0 to 5,
or send it back with --reject. Approval credits the assignee's linked KPIs
with grade/5 x task weight x contribution weight/100.

Examples:
  keel task review 9a1f... --user 5e7a... --grade 4
  keel task review 9a1f... --user 5e7a... --reject --comments "missing tests"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		taskID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid task ID: %w", err)
		}
		userID, err := uuid.Parse(reviewUser)
		if err != nil {
			return fmt.Errorf("invalid user ID: %w", err)
		}

		result, err := app.ReviewCompletionHandler.Handle(cmd.Context(), commands.ReviewCompletionCommand{
			Session:  app.Session,
			TaskID:   taskID,
			UserID:   userID,
			Approve:  !reviewReject,
			Grade:    reviewGrade,
			Comments: reviewComments,
		})
		if err != nil {
			return fmt.Errorf("failed to review completion: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Task %s is now %s\n", taskID, result.Status)
		for _, c := range result.Contributions {
			fmt.Fprintf(out, "  %s %s[%d] +%.2f\n", c.UserID, c.KPIDocID, c.KPIIndex, c.Delta)
		}
		return nil
	},
}

func init() {
	reviewCmd.Flags().StringVar(&reviewUser, "user", "", "assignee user ID")
	reviewCmd.Flags().Float64VarP(&reviewGrade, "grade", "g", 0, "grade from 0 to 5")
	reviewCmd.Flags().BoolVar(&reviewReject, "reject", false, "send the completion back")
	reviewCmd.Flags().StringVar(&reviewComments, "comments", "", "review comments")
	_ = reviewCmd.MarkFlagRequired("user")
}
