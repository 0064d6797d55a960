package mcp

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/mcp-go"
)

// RegisterPrompts registers MCP prompts for common planning workflows.
func RegisterPrompts(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return fmt.Errorf("server is required")
	}

	srv.Prompt("milestone_review").
		Description("Review a milestone tree: progress, unused capacity, pending approvals and overdue work.").
		Argument("milestone_id", "ID of the milestone to review", true).
		Handler(func(ctx context.Context, args map[string]string) (*mcp.PromptResult, error) {
			return milestoneReviewPrompt(args["milestone_id"])
		})

	srv.Prompt("plan_breakdown").
		Description("Break a goal into weighted sub-milestones and tasks whose weights fit a 100 point budget.").
		Argument("goal", "The outcome the milestone should deliver", true).
		Argument("project_id", "Project the milestone belongs to", false).
		Handler(func(ctx context.Context, args map[string]string) (*mcp.PromptResult, error) {
			return planBreakdownPrompt(args["goal"], args["project_id"])
		})

	return nil
}

func userPrompt(description, text string) *mcp.PromptResult {
	return &mcp.PromptResult{
		Description: description,
		Messages: []mcp.PromptMessage{
			{
				Role: string(mcp.RoleUser),
				Content: mcp.TextContent{
					Type: "text",
					Text: text,
				},
			},
		},
	}
}

func milestoneReviewPrompt(milestoneID string) (*mcp.PromptResult, error) {
	if milestoneID == "" {
		return nil, fmt.Errorf("milestone_id is required")
	}
	return userPrompt("Milestone Review", fmt.Sprintf(`Review milestone %[1]s.

1. Load the tree with the hierarchy.get tool (milestone_id: %[1]s)
2. Check the remaining budget with hierarchy.capacity for the milestone and each sub-milestone
3. List its tasks with hierarchy.tasks

Then report:
- Overall progress and which sub-milestones hold it back
- Containers with unallocated weight, and whether that is intended
- Tasks waiting in pending_approval or pending_completion_approval
- Tasks past their due date that are not completed

Suggest concrete next steps using the task.approve, task.review and task.progress tools.`, milestoneID)), nil
}

func planBreakdownPrompt(goal, projectID string) (*mcp.PromptResult, error) {
	if goal == "" {
		return nil, fmt.Errorf("goal is required")
	}
	project := "a new project id"
	if projectID != "" {
		project = "project " + projectID
	}
	return userPrompt("Plan Breakdown", fmt.Sprintf(`Help me turn this goal into a milestone plan for %s:

%s

Rules for the plan:
- Every milestone and sub-milestone has a budget of 100 weight points
- The weights of a container's direct children may not add up to more than 100
- Tasks are leaves; sub-milestones may nest
- Check keel://kpis/approved and link each piece of work to the KPIs it moves

Propose the breakdown as a YAML plan first. Once I confirm, create it with
milestone.create, submilestone.add and task.add.`, project, goal)), nil
}
