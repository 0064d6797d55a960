package commands

import (
	"context"

	"github.com/felixgeelhaar/keel/internal/hierarchy/application"
	"github.com/felixgeelhaar/keel/internal/hierarchy/domain"
	sharedApplication "github.com/felixgeelhaar/keel/internal/shared/application"
	"github.com/felixgeelhaar/keel/pkg/observability"
)

// ImportPlanCommand creates a whole hierarchy from a YAML plan.
type ImportPlanCommand struct {
	Session sharedApplication.Session
	Data    []byte
}

// ImportPlanResult describes the imported hierarchy.
type ImportPlanResult struct {
	View *application.HierarchyView
}

// ImportPlanHandler handles the ImportPlanCommand.
type ImportPlanHandler struct {
	deps Deps
	kpis application.KPIDirectory
}

// NewImportPlanHandler creates a new ImportPlanHandler.
func NewImportPlanHandler(deps Deps, kpis application.KPIDirectory) *ImportPlanHandler {
	return &ImportPlanHandler{deps: deps, kpis: kpis}
}

// Handle parses, verifies and stores the plan. Nothing is written unless the
// whole plan is valid.
func (h *ImportPlanHandler) Handle(ctx context.Context, cmd ImportPlanCommand) (*ImportPlanResult, error) {
	if err := cmd.Session.RequireSupervisor(); err != nil {
		return nil, err
	}
	plan, err := application.ParsePlan(cmd.Data)
	if err != nil {
		return nil, err
	}
	if err := application.VerifyKPILinks(ctx, h.kpis, plan.AllKPILinks()); err != nil {
		return nil, err
	}
	built, err := plan.BuildTree(cmd.Session.UserID)
	if err != nil {
		return nil, err
	}

	tree, err := h.deps.run(ctx, cmd.Session, func(context.Context) (*domain.Tree, error) {
		return built, nil
	}, unchanged)
	if err != nil {
		return nil, err
	}

	view, err := application.BuildHierarchyView(tree)
	if err != nil {
		return nil, err
	}
	h.deps.count(observability.MetricMilestonesCreated, 1)
	h.deps.count(observability.MetricNodesAdded, tree.Len()-1)
	return &ImportPlanResult{View: view}, nil
}
