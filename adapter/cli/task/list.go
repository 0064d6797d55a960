package task

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/felixgeelhaar/keel/adapter/cli"
	"github.com/felixgeelhaar/keel/internal/hierarchy/application/queries"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var listFrom string

var listCmd = &cobra.Command{
	Use:   "list [milestone-id]",
	Short: "List the tasks of a milestone",
	Long: `List every task of a milestone in depth-first order, or only the
tasks under one sub-milestone with --from.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		mID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid milestone ID: %w", err)
		}
		from, err := cli.ParseOptionalID("node ID", listFrom)
		if err != nil {
			return err
		}

		tasks, err := app.ListTasksHandler.Handle(cmd.Context(), queries.ListTasksQuery{MilestoneID: mID, From: from})
		if err != nil {
			return fmt.Errorf("failed to list tasks: %w", err)
		}
		if len(tasks) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No tasks found.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tWEIGHT\tSTATUS\tPROGRESS\tASSIGNEES")
		for _, t := range tasks {
			names := make([]string, 0, len(t.Assignees))
			for _, a := range t.Assignees {
				names = append(names, a.UserID.String()[:8])
			}
			fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%.1f%%\t%s\n",
				t.ID, t.Title, t.Weight, t.Status, t.Progress, strings.Join(names, ","))
		}
		return w.Flush()
	},
}

func init() {
	listCmd.Flags().StringVar(&listFrom, "from", "", "only tasks under this sub-milestone")
}
