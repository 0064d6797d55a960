package mcp

import (
	"context"

	"github.com/felixgeelhaar/keel/adapter/cli"
	"github.com/felixgeelhaar/keel/internal/hierarchy/application"
	"github.com/felixgeelhaar/keel/internal/hierarchy/application/commands"
	"github.com/felixgeelhaar/keel/internal/hierarchy/application/queries"
	"github.com/felixgeelhaar/keel/internal/hierarchy/domain"
	"github.com/felixgeelhaar/mcp-go"
)

type milestoneIDInput struct {
	MilestoneID string `json:"milestone_id" jsonschema:"required"`
}

type nodeIDInput struct {
	NodeID string `json:"node_id" jsonschema:"required"`
}

type projectIDInput struct {
	ProjectID string `json:"project_id" jsonschema:"required"`
}

type hierarchyTasksInput struct {
	MilestoneID string `json:"milestone_id" jsonschema:"required"`
	From        string `json:"from,omitempty"`
}

type milestoneCreateInput struct {
	ProjectID    string         `json:"project_id" jsonschema:"required"`
	Title        string         `json:"title" jsonschema:"required"`
	Description  string         `json:"description,omitempty"`
	DueDate      string         `json:"due_date,omitempty"`
	SupervisorID string         `json:"supervisor_id,omitempty"`
	LinkedKPIs   []kpiLinkInput `json:"linked_kpis,omitempty"`
}

type subMilestoneAddInput struct {
	MilestoneID  string         `json:"milestone_id" jsonschema:"required"`
	ParentID     string         `json:"parent_id,omitempty"`
	Title        string         `json:"title" jsonschema:"required"`
	Description  string         `json:"description,omitempty"`
	Weight       float64        `json:"weight" jsonschema:"required"`
	DueDate      string         `json:"due_date,omitempty"`
	SupervisorID string         `json:"supervisor_id,omitempty"`
	LinkedKPIs   []kpiLinkInput `json:"linked_kpis,omitempty"`
}

type nodeRemoveInput struct {
	NodeID string `json:"node_id" jsonschema:"required"`
	Kind   string `json:"kind,omitempty"`
}

func registerHierarchyTools(srv *mcp.Server, deps ToolDependencies) error {
	app := deps.App

	srv.Tool("hierarchy.get").
		Description("Get a milestone tree with computed progress and remaining capacity").
		Handler(hierarchyGet(app))

	srv.Tool("hierarchy.capacity").
		Description("Get the allocated and remaining weight budget of a milestone or sub-milestone").
		Handler(hierarchyCapacity(app))

	srv.Tool("hierarchy.tasks").
		Description("List the tasks of a milestone in depth-first order").
		Handler(func(ctx context.Context, input hierarchyTasksInput) ([]application.NodeView, error) {
			if err := requireApp(app, "task listing"); err != nil {
				return nil, err
			}
			milestoneID, err := parseUUID(input.MilestoneID)
			if err != nil {
				return nil, err
			}
			from, err := parseOptionalUUID(input.From)
			if err != nil {
				return nil, err
			}
			return app.ListTasksHandler.Handle(ctx, queries.ListTasksQuery{MilestoneID: milestoneID, From: from})
		})

	srv.Tool("milestone.list").
		Description("List a project's milestones with progress").
		Handler(func(ctx context.Context, input projectIDInput) ([]application.MilestoneSummary, error) {
			if err := requireApp(app, "milestone listing"); err != nil {
				return nil, err
			}
			projectID, err := parseUUID(input.ProjectID)
			if err != nil {
				return nil, err
			}
			return app.ListMilestonesHandler.Handle(ctx, queries.ListMilestonesQuery{ProjectID: projectID})
		})

	srv.Tool("milestone.create").
		Description("Create a milestone (supervisors only)").
		Handler(milestoneCreate(app))

	srv.Tool("milestone.delete").
		Description("Delete a milestone and everything under it (supervisors only)").
		Handler(func(ctx context.Context, input milestoneIDInput) (map[string]any, error) {
			if err := requireApp(app, "milestone deletion"); err != nil {
				return nil, err
			}
			milestoneID, err := parseUUID(input.MilestoneID)
			if err != nil {
				return nil, err
			}
			n, err := app.DeleteMilestoneHandler.Handle(ctx, commands.DeleteMilestoneCommand{
				Session:     app.Session,
				MilestoneID: milestoneID,
			})
			if err != nil {
				return nil, err
			}
			return map[string]any{"milestone_id": milestoneID, "removed": n}, nil
		})

	srv.Tool("submilestone.add").
		Description("Add a weighted sub-milestone under a milestone or another sub-milestone").
		Handler(subMilestoneAdd(app))

	srv.Tool("node.remove").
		Description("Remove a sub-milestone or task with its subtree").
		Handler(func(ctx context.Context, input nodeRemoveInput) (*commands.RemoveNodeResult, error) {
			if err := requireApp(app, "node removal"); err != nil {
				return nil, err
			}
			nodeID, err := parseUUID(input.NodeID)
			if err != nil {
				return nil, err
			}
			return app.RemoveNodeHandler.Handle(ctx, commands.RemoveNodeCommand{
				Session: app.Session,
				NodeID:  nodeID,
				Kind:    domain.Kind(input.Kind),
			})
		})

	srv.Tool("plan.export").
		Description("Export a milestone tree as a YAML plan").
		Handler(func(ctx context.Context, input milestoneIDInput) (map[string]string, error) {
			if err := requireApp(app, "plan export"); err != nil {
				return nil, err
			}
			milestoneID, err := parseUUID(input.MilestoneID)
			if err != nil {
				return nil, err
			}
			data, err := app.ExportPlanHandler.Handle(ctx, milestoneID)
			if err != nil {
				return nil, err
			}
			return map[string]string{"plan": string(data)}, nil
		})

	return nil
}

func hierarchyGet(app *cli.App) func(context.Context, milestoneIDInput) (*application.HierarchyView, error) {
	return func(ctx context.Context, input milestoneIDInput) (*application.HierarchyView, error) {
		if err := requireApp(app, "hierarchy lookup"); err != nil {
			return nil, err
		}
		milestoneID, err := parseUUID(input.MilestoneID)
		if err != nil {
			return nil, err
		}
		return app.GetHierarchyHandler.Handle(ctx, queries.GetHierarchyQuery{MilestoneID: milestoneID})
	}
}

func hierarchyCapacity(app *cli.App) func(context.Context, nodeIDInput) (*application.CapacityView, error) {
	return func(ctx context.Context, input nodeIDInput) (*application.CapacityView, error) {
		if err := requireApp(app, "capacity lookup"); err != nil {
			return nil, err
		}
		nodeID, err := parseUUID(input.NodeID)
		if err != nil {
			return nil, err
		}
		return app.GetCapacityHandler.Handle(ctx, queries.GetCapacityQuery{NodeID: nodeID})
	}
}

func milestoneCreate(app *cli.App) func(context.Context, milestoneCreateInput) (*commands.CreateMilestoneResult, error) {
	return func(ctx context.Context, input milestoneCreateInput) (*commands.CreateMilestoneResult, error) {
		if err := requireApp(app, "milestone creation"); err != nil {
			return nil, err
		}
		projectID, err := parseUUID(input.ProjectID)
		if err != nil {
			return nil, err
		}
		due, err := parseDueDate(input.DueDate)
		if err != nil {
			return nil, err
		}
		supervisor, err := parseOptionalUUID(input.SupervisorID)
		if err != nil {
			return nil, err
		}
		links, err := toKPILinks(input.LinkedKPIs)
		if err != nil {
			return nil, err
		}
		return app.CreateMilestoneHandler.Handle(ctx, commands.CreateMilestoneCommand{
			Session:      app.Session,
			ProjectID:    projectID,
			Title:        input.Title,
			Description:  input.Description,
			DueDate:      due,
			SupervisorID: supervisor,
			LinkedKPIs:   links,
		})
	}
}

func subMilestoneAdd(app *cli.App) func(context.Context, subMilestoneAddInput) (*commands.NodeResult, error) {
	return func(ctx context.Context, input subMilestoneAddInput) (*commands.NodeResult, error) {
		if err := requireApp(app, "sub-milestone creation"); err != nil {
			return nil, err
		}
		milestoneID, err := parseUUID(input.MilestoneID)
		if err != nil {
			return nil, err
		}
		parentID, err := parseOptionalUUID(input.ParentID)
		if err != nil {
			return nil, err
		}
		supervisor, err := parseOptionalUUID(input.SupervisorID)
		if err != nil {
			return nil, err
		}
		due, err := parseDueDate(input.DueDate)
		if err != nil {
			return nil, err
		}
		links, err := toKPILinks(input.LinkedKPIs)
		if err != nil {
			return nil, err
		}
		return app.AddSubMilestoneHandler.Handle(ctx, commands.AddSubMilestoneCommand{
			Session:      app.Session,
			MilestoneID:  milestoneID,
			ParentID:     parentID,
			Title:        input.Title,
			Description:  input.Description,
			Weight:       input.Weight,
			DueDate:      due,
			SupervisorID: supervisor,
			LinkedKPIs:   links,
		})
	}
}
