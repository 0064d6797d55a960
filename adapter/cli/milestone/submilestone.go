package milestone

import (
	"fmt"

	"github.com/felixgeelhaar/keel/adapter/cli"
	"github.com/felixgeelhaar/keel/internal/hierarchy/application/commands"
	"github.com/felixgeelhaar/keel/internal/hierarchy/domain"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	subWeight      float64
	subParentID    string
	subDescription string
	subDueDate     string
	subSupervisor  string
	subKPILinks    []string
)

var addSubCmd = &cobra.Command{
	Use:   "add [milestone-id] [title]",
	Short: "Add a weighted sub-milestone",
	Long: `Add a sub-milestone under a milestone, or under another sub-milestone
with --parent. The weight must fit in the parent's remaining budget.

Examples:
  keel submilestone add 3c9e... "Backend" --weight 60
  keel submilestone add 3c9e... "Auth" --weight 25 --parent 81d0...`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		milestoneID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid milestone ID: %w", err)
		}
		parentID, err := cli.ParseOptionalID("parent ID", subParentID)
		if err != nil {
			return err
		}
		supervisor, err := cli.ParseOptionalID("supervisor ID", subSupervisor)
		if err != nil {
			return err
		}
		due, err := cli.ParseDueDate(subDueDate)
		if err != nil {
			return err
		}
		links, err := cli.ParseKPILinks(subKPILinks)
		if err != nil {
			return err
		}

		result, err := app.AddSubMilestoneHandler.Handle(cmd.Context(), commands.AddSubMilestoneCommand{
			Session:      app.Session,
			MilestoneID:  milestoneID,
			ParentID:     parentID,
			Title:        args[1],
			Description:  subDescription,
			Weight:       subWeight,
			DueDate:      due,
			SupervisorID: supervisor,
			LinkedKPIs:   links,
		})
		if err != nil {
			return fmt.Errorf("failed to add sub-milestone: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Sub-milestone added: %s\n", result.NodeID)
		fmt.Fprintf(out, "  weight: %.2f\n", subWeight)
		fmt.Fprintf(out, "  remaining capacity: %.2f\n", result.Remaining)
		return nil
	},
}

var deleteSubCmd = &cobra.Command{
	Use:   "delete [sub-milestone-id]",
	Short: "Remove a sub-milestone and its subtree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		nodeID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid sub-milestone ID: %w", err)
		}

		result, err := app.RemoveNodeHandler.Handle(cmd.Context(), commands.RemoveNodeCommand{
			Session: app.Session,
			NodeID:  nodeID,
			Kind:    domain.KindSubMilestone,
		})
		if err != nil {
			return fmt.Errorf("failed to remove sub-milestone: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Sub-milestone removed: %s (%d nodes)\n", nodeID, len(result.Removed))
		return nil
	},
}

func init() {
	addSubCmd.Flags().Float64VarP(&subWeight, "weight", "w", 0, "weight within the parent's budget (0-100]")
	addSubCmd.Flags().StringVar(&subParentID, "parent", "", "parent sub-milestone ID")
	addSubCmd.Flags().StringVarP(&subDescription, "description", "d", "", "description")
	addSubCmd.Flags().StringVar(&subDueDate, "due", "", "due date (YYYY-MM-DD)")
	addSubCmd.Flags().StringVar(&subSupervisor, "supervisor", "", "assigned supervisor ID")
	addSubCmd.Flags().StringArrayVar(&subKPILinks, "kpi", nil, "linked KPI (user-id:kpi-doc-id:index:weight), repeatable")
	_ = addSubCmd.MarkFlagRequired("weight")
}
