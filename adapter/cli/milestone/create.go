package milestone

import (
	"fmt"

	"github.com/felixgeelhaar/keel/adapter/cli"
	"github.com/felixgeelhaar/keel/internal/hierarchy/application/commands"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	description  string
	dueDate      string
	supervisorID string
	kpiLinks     []string
)

var createCmd = &cobra.Command{
	Use:   "create [project-id] [title]",
	Short: "Create a milestone",
	Long: `Create a new milestone. A milestone is the root of a hierarchy and
starts with a full weight budget of 100.

Examples:
  keel milestone create 6f1c... "Q3 launch" --due 2026-09-30
  keel milestone create 6f1c... "Platform" -d "Core services" --supervisor 0a2b...`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}

		projectID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid project ID: %w", err)
		}
		due, err := cli.ParseDueDate(dueDate)
		if err != nil {
			return err
		}
		supervisor, err := cli.ParseOptionalID("supervisor ID", supervisorID)
		if err != nil {
			return err
		}
		links, err := cli.ParseKPILinks(kpiLinks)
		if err != nil {
			return err
		}

		result, err := app.CreateMilestoneHandler.Handle(cmd.Context(), commands.CreateMilestoneCommand{
			Session:      app.Session,
			ProjectID:    projectID,
			Title:        args[1],
			Description:  description,
			DueDate:      due,
			SupervisorID: supervisor,
			LinkedKPIs:   links,
		})
		if err != nil {
			return fmt.Errorf("failed to create milestone: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Milestone created: %s\n", result.MilestoneID)
		fmt.Fprintf(out, "  title: %s\n", args[1])
		if dueDate != "" {
			fmt.Fprintf(out, "  due: %s\n", dueDate)
		}
		return nil
	},
}

func init() {
	createCmd.Flags().StringVarP(&description, "description", "d", "", "milestone description")
	createCmd.Flags().StringVar(&dueDate, "due", "", "due date (YYYY-MM-DD)")
	createCmd.Flags().StringVar(&supervisorID, "supervisor", "", "supervisor user ID")
	createCmd.Flags().StringArrayVar(&kpiLinks, "kpi", nil, "linked KPI (user-id:kpi-doc-id:index:weight), repeatable")
}
