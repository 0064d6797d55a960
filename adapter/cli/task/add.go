package task

import (
	"fmt"

	"github.com/felixgeelhaar/keel/adapter/cli"
	"github.com/felixgeelhaar/keel/internal/hierarchy/application/commands"
	"github.com/felixgeelhaar/keel/internal/hierarchy/domain"
	"github.com/spf13/cobra"
)

var (
	milestoneID    string
	subMilestoneID string
	projectID      string
	weight         float64
	priority       string
	description    string
	dueDate        string
	assignees      []string
	kpiLinks       []string
	notes          string
)

var addCmd = &cobra.Command{
	Use:   "add [title]",
	Short: "Add a task under a milestone or sub-milestone",
	Long: `Add a weighted task. Use --milestone for a task directly under the
milestone, or --sub-milestone for a task under a sub-milestone. Every
assignee needs KPI links whose weights sum to 100.

Tasks added by employees wait for supervisor approval.

Examples:
  keel task add "Write API" --sub-milestone 81d0... --weight 50
  keel task add "Load test" --milestone 3c9e... -w 20 --assignee 5e7a... \
    --kpi 5e7a...:kpi-2026:0:100`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		if (milestoneID == "") == (subMilestoneID == "") {
			return fmt.Errorf("exactly one of --milestone or --sub-milestone is required")
		}

		mID, err := cli.ParseOptionalID("milestone ID", milestoneID)
		if err != nil {
			return err
		}
		parentID, err := cli.ParseOptionalID("sub-milestone ID", subMilestoneID)
		if err != nil {
			return err
		}
		pID, err := cli.ParseOptionalID("project ID", projectID)
		if err != nil {
			return err
		}
		due, err := cli.ParseDueDate(dueDate)
		if err != nil {
			return err
		}
		assignedTo, err := cli.ParseIDs("assignee", assignees)
		if err != nil {
			return err
		}
		links, err := cli.ParseKPILinks(kpiLinks)
		if err != nil {
			return err
		}

		result, err := app.AddTaskHandler.Handle(cmd.Context(), commands.AddTaskCommand{
			Session:     app.Session,
			ProjectID:   pID,
			MilestoneID: mID,
			ParentID:    parentID,
			Title:       args[0],
			Description: description,
			Priority:    priority,
			DueDate:     due,
			Weight:      weight,
			AssignedTo:  assignedTo,
			LinkedKPIs:  links,
			Notes:       notes,
		})
		if err != nil {
			return fmt.Errorf("failed to add task: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Task added: %s\n", result.NodeID)
		fmt.Fprintf(out, "  title: %s\n", args[0])
		fmt.Fprintf(out, "  weight: %.2f\n", weight)
		fmt.Fprintf(out, "  remaining capacity: %.2f\n", result.Remaining)
		if result.Status == domain.StatusPendingApproval {
			fmt.Fprintln(out, "  awaiting supervisor approval")
		}
		return nil
	},
}

func init() {
	addCmd.Flags().StringVar(&milestoneID, "milestone", "", "milestone ID (task directly under the milestone)")
	addCmd.Flags().StringVar(&subMilestoneID, "sub-milestone", "", "sub-milestone ID")
	addCmd.Flags().StringVar(&projectID, "project", "", "project ID; must match the milestone's")
	addCmd.Flags().Float64VarP(&weight, "weight", "w", 0, "weight within the parent's budget (0-100]")
	addCmd.Flags().StringVarP(&priority, "priority", "p", "", "task priority (low, medium, high, critical)")
	addCmd.Flags().StringVarP(&description, "description", "d", "", "task description")
	addCmd.Flags().StringVar(&dueDate, "due", "", "due date (YYYY-MM-DD)")
	addCmd.Flags().StringArrayVar(&assignees, "assignee", nil, "assignee user ID, repeatable")
	addCmd.Flags().StringArrayVar(&kpiLinks, "kpi", nil, "linked KPI (user-id:kpi-doc-id:index:weight), repeatable")
	addCmd.Flags().StringVar(&notes, "notes", "", "notes")
	_ = addCmd.MarkFlagRequired("weight")
}
