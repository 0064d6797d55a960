package milestone

import (
	"fmt"
	"text/tabwriter"

	"github.com/felixgeelhaar/keel/adapter/cli"
	"github.com/felixgeelhaar/keel/internal/hierarchy/application/queries"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list [project-id]",
	Short: "List a project's milestones",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		projectID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid project ID: %w", err)
		}

		milestones, err := app.ListMilestonesHandler.Handle(cmd.Context(), queries.ListMilestonesQuery{ProjectID: projectID})
		if err != nil {
			return fmt.Errorf("failed to list milestones: %w", err)
		}
		if len(milestones) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No milestones found.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tPROGRESS\tTASKS\tREMAINING\tDUE")
		for _, m := range milestones {
			due := "-"
			if m.DueDate != nil {
				due = m.DueDate.Format(cli.DateLayout)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%.1f%%\t%d\t%.2f\t%s\n",
				m.ID, m.Title, m.Status, m.Progress, m.TaskCount, m.Remaining, due)
		}
		return w.Flush()
	},
}
