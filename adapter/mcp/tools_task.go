package mcp

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/keel/adapter/cli"
	"github.com/felixgeelhaar/keel/internal/hierarchy/application/commands"
	"github.com/felixgeelhaar/keel/internal/hierarchy/domain"
	"github.com/felixgeelhaar/mcp-go"
)

type taskAddInput struct {
	MilestoneID    string         `json:"milestone_id,omitempty"`
	SubMilestoneID string         `json:"sub_milestone_id,omitempty"`
	ProjectID      string         `json:"project_id,omitempty"`
	Title          string         `json:"title" jsonschema:"required"`
	Description    string         `json:"description,omitempty"`
	Weight         float64        `json:"weight" jsonschema:"required"`
	Priority       string         `json:"priority,omitempty"`
	DueDate        string         `json:"due_date,omitempty"`
	AssignedTo     []string       `json:"assigned_to,omitempty"`
	LinkedKPIs     []kpiLinkInput `json:"linked_kpis,omitempty"`
	Notes          string         `json:"notes,omitempty"`
}

type taskApprovalInput struct {
	TaskID  string `json:"task_id" jsonschema:"required"`
	Approve bool   `json:"approve"`
}

type taskStatusInput struct {
	NodeID string `json:"node_id" jsonschema:"required"`
	Status string `json:"status" jsonschema:"required"`
}

type taskProgressInput struct {
	TaskID   string  `json:"task_id" jsonschema:"required"`
	Progress float64 `json:"progress" jsonschema:"required"`
}

type taskSubmitInput struct {
	TaskID    string   `json:"task_id" jsonschema:"required"`
	Notes     string   `json:"notes,omitempty"`
	Documents []string `json:"documents,omitempty"`
}

type taskReviewInput struct {
	TaskID   string  `json:"task_id" jsonschema:"required"`
	UserID   string  `json:"user_id" jsonschema:"required"`
	Approve  bool    `json:"approve"`
	Grade    float64 `json:"grade,omitempty"`
	Comments string  `json:"comments,omitempty"`
}

func registerTaskTools(srv *mcp.Server, deps ToolDependencies) error {
	app := deps.App

	srv.Tool("task.add").
		Description("Add a weighted task under a milestone or sub-milestone").
		Handler(taskAdd(app))

	srv.Tool("task.approve").
		Description("Approve or reject a task waiting for supervisor approval").
		Handler(func(ctx context.Context, input taskApprovalInput) (map[string]any, error) {
			if err := requireApp(app, "task approval"); err != nil {
				return nil, err
			}
			taskID, err := parseUUID(input.TaskID)
			if err != nil {
				return nil, err
			}
			status, err := app.DecideApprovalHandler.Handle(ctx, commands.DecideApprovalCommand{
				Session: app.Session,
				TaskID:  taskID,
				Approve: input.Approve,
			})
			if err != nil {
				return nil, err
			}
			return map[string]any{"task_id": taskID, "status": status}, nil
		})

	srv.Tool("task.status").
		Description("Move a task or sub-milestone to a new status").
		Handler(func(ctx context.Context, input taskStatusInput) (map[string]any, error) {
			if err := requireApp(app, "status update"); err != nil {
				return nil, err
			}
			nodeID, err := parseUUID(input.NodeID)
			if err != nil {
				return nil, err
			}
			if err := app.UpdateStatusHandler.Handle(ctx, commands.UpdateStatusCommand{
				Session: app.Session,
				NodeID:  nodeID,
				Status:  input.Status,
			}); err != nil {
				return nil, err
			}
			return map[string]any{"node_id": nodeID, "status": input.Status}, nil
		})

	srv.Tool("task.progress").
		Description("Report a task's progress and get the milestone's recomputed progress").
		Handler(taskProgress(app))

	srv.Tool("task.submit").
		Description("Submit your completion of a task for review").
		Handler(func(ctx context.Context, input taskSubmitInput) (map[string]any, error) {
			if err := requireApp(app, "completion submission"); err != nil {
				return nil, err
			}
			taskID, err := parseUUID(input.TaskID)
			if err != nil {
				return nil, err
			}
			if err := app.SubmitCompletionHandler.Handle(ctx, commands.SubmitCompletionCommand{
				Session:   app.Session,
				TaskID:    taskID,
				Notes:     input.Notes,
				Documents: input.Documents,
			}); err != nil {
				return nil, err
			}
			return map[string]any{"task_id": taskID, "submitted": true}, nil
		})

	srv.Tool("task.review").
		Description("Grade (0-5) or reject an assignee's completion; approval records KPI contributions").
		Handler(taskReview(app))

	return nil
}

func taskAdd(app *cli.App) func(context.Context, taskAddInput) (*commands.AddTaskResult, error) {
	return func(ctx context.Context, input taskAddInput) (*commands.AddTaskResult, error) {
		if err := requireApp(app, "task creation"); err != nil {
			return nil, err
		}
		if (input.MilestoneID == "") == (input.SubMilestoneID == "") {
			return nil, errors.New("exactly one of milestone_id or sub_milestone_id is required")
		}
		milestoneID, err := parseOptionalUUID(input.MilestoneID)
		if err != nil {
			return nil, err
		}
		parentID, err := parseOptionalUUID(input.SubMilestoneID)
		if err != nil {
			return nil, err
		}
		projectID, err := parseOptionalUUID(input.ProjectID)
		if err != nil {
			return nil, err
		}
		due, err := parseDueDate(input.DueDate)
		if err != nil {
			return nil, err
		}
		assignees, err := parseUUIDs(input.AssignedTo)
		if err != nil {
			return nil, err
		}
		links, err := toKPILinks(input.LinkedKPIs)
		if err != nil {
			return nil, err
		}
		return app.AddTaskHandler.Handle(ctx, commands.AddTaskCommand{
			Session:     app.Session,
			ProjectID:   projectID,
			MilestoneID: milestoneID,
			ParentID:    parentID,
			Title:       input.Title,
			Description: input.Description,
			Priority:    input.Priority,
			DueDate:     due,
			Weight:      input.Weight,
			AssignedTo:  assignees,
			LinkedKPIs:  links,
			Notes:       input.Notes,
		})
	}
}

func taskProgress(app *cli.App) func(context.Context, taskProgressInput) (map[string]any, error) {
	return func(ctx context.Context, input taskProgressInput) (map[string]any, error) {
		if err := requireApp(app, "progress update"); err != nil {
			return nil, err
		}
		taskID, err := parseUUID(input.TaskID)
		if err != nil {
			return nil, err
		}
		milestoneProgress, err := app.UpdateProgressHandler.Handle(ctx, commands.UpdateProgressCommand{
			Session:  app.Session,
			TaskID:   taskID,
			Progress: input.Progress,
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"task_id":            taskID,
			"progress":           input.Progress,
			"milestone_progress": milestoneProgress,
		}, nil
	}
}

type taskReviewResult struct {
	Status        domain.Status         `json:"status"`
	Contributions []domain.Contribution `json:"contributions"`
}

func taskReview(app *cli.App) func(context.Context, taskReviewInput) (*taskReviewResult, error) {
	return func(ctx context.Context, input taskReviewInput) (*taskReviewResult, error) {
		if err := requireApp(app, "completion review"); err != nil {
			return nil, err
		}
		taskID, err := parseUUID(input.TaskID)
		if err != nil {
			return nil, err
		}
		userID, err := parseUUID(input.UserID)
		if err != nil {
			return nil, err
		}
		res, err := app.ReviewCompletionHandler.Handle(ctx, commands.ReviewCompletionCommand{
			Session:  app.Session,
			TaskID:   taskID,
			UserID:   userID,
			Approve:  input.Approve,
			Grade:    input.Grade,
			Comments: input.Comments,
		})
		if err != nil {
			return nil, err
		}
		contributions := res.Contributions
		if contributions == nil {
			contributions = []domain.Contribution{}
		}
		return &taskReviewResult{Status: res.Status, Contributions: contributions}, nil
	}
}
