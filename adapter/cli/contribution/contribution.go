package contribution

import (
	"fmt"
	"text/tabwriter"

	"github.com/felixgeelhaar/keel/adapter/cli"
	"github.com/felixgeelhaar/keel/internal/hierarchy/application/queries"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// Cmd is the contribution command group
var Cmd = &cobra.Command{
	Use:   "contribution",
	Short: "Inspect KPI contributions",
	Long:  `Preview and list the KPI contributions earned by graded tasks.`,
}

var (
	taskWeight         float64
	grade              float64
	contributionWeight float64

	listTask string
	listUser string
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Compute the contribution a grade would earn",
	Long: `Compute grade/5 x task weight x contribution weight/100 without
recording anything.

Example:
  keel contribution preview --task-weight 50 --grade 4 --weight 50`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		preview, err := queries.PreviewContribution(taskWeight, grade, contributionWeight)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "delta: %.4f\n", preview.Delta)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded contributions for a task or a user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		taskID, err := cli.ParseOptionalID("task ID", listTask)
		if err != nil {
			return err
		}
		userID, err := cli.ParseOptionalID("user ID", listUser)
		if err != nil {
			return err
		}

		entries, err := app.ListContributionsHandler.Handle(cmd.Context(), queries.ListContributionsQuery{TaskID: taskID, UserID: userID})
		if err != nil {
			return fmt.Errorf("failed to list contributions: %w", err)
		}
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No contributions recorded.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TASK\tUSER\tKPI\tGRADE\tDELTA\tRECORDED")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s[%d]\t%.1f\t%.4f\t%s\n",
				e.TaskID, e.UserID, e.KPIDocID, e.KPIIndex, e.Grade, e.Delta, e.RecordedAt.Format(cli.DateLayout))
		}
		return w.Flush()
	},
}

var kpisCmd = &cobra.Command{
	Use:   "kpis [user-id]",
	Short: "List the KPIs a user may link work to",
	Long:  `List the approved KPIs of a user, or of the configured user when omitted.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		userID := app.Session.UserID
		if len(args) == 1 {
			userID, err = uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user ID: %w", err)
			}
		}

		kpis, err := app.ApprovedKPIsHandler.Handle(cmd.Context(), userID)
		if err != nil {
			return fmt.Errorf("failed to list KPIs: %w", err)
		}
		if len(kpis) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No approved KPIs.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "DOC\tINDEX\tTITLE\tWEIGHT\tPROGRESS")
		for _, k := range kpis {
			fmt.Fprintf(w, "%s\t%d\t%s\t%.1f\t%.1f\n", k.KPIDocID, k.KPIIndex, k.Title, k.Weight, k.Progress)
		}
		return w.Flush()
	},
}

func init() {
	previewCmd.Flags().Float64Var(&taskWeight, "task-weight", 0, "task weight")
	previewCmd.Flags().Float64VarP(&grade, "grade", "g", 0, "grade from 0 to 5")
	previewCmd.Flags().Float64VarP(&contributionWeight, "weight", "w", 0, "contribution weight of the KPI link")
	listCmd.Flags().StringVar(&listTask, "task", "", "task ID")
	listCmd.Flags().StringVar(&listUser, "user", "", "user ID")

	Cmd.AddCommand(previewCmd)
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(kpisCmd)
}
