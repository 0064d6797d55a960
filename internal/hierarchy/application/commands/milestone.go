package commands

import (
	"context"
	"time"

	"github.com/felixgeelhaar/keel/internal/hierarchy/application"
	"github.com/felixgeelhaar/keel/internal/hierarchy/domain"
	sharedApplication "github.com/felixgeelhaar/keel/internal/shared/application"
	"github.com/felixgeelhaar/keel/pkg/observability"
	"github.com/google/uuid"
)

// CreateMilestoneCommand contains the data needed to start a new hierarchy.
type CreateMilestoneCommand struct {
	Session      sharedApplication.Session
	ProjectID    uuid.UUID
	Title        string
	Description  string
	DueDate      *time.Time
	SupervisorID uuid.UUID
	LinkedKPIs   []domain.KPILink
}

// CreateMilestoneResult contains the result of creating a milestone.
type CreateMilestoneResult struct {
	MilestoneID uuid.UUID
}

// CreateMilestoneHandler handles the CreateMilestoneCommand.
type CreateMilestoneHandler struct {
	deps Deps
	kpis application.KPIDirectory
}

// NewCreateMilestoneHandler creates a new CreateMilestoneHandler. kpis may
// be nil.
func NewCreateMilestoneHandler(deps Deps, kpis application.KPIDirectory) *CreateMilestoneHandler {
	return &CreateMilestoneHandler{deps: deps, kpis: kpis}
}

// Handle executes the CreateMilestoneCommand.
func (h *CreateMilestoneHandler) Handle(ctx context.Context, cmd CreateMilestoneCommand) (*CreateMilestoneResult, error) {
	if err := cmd.Session.RequireSupervisor(); err != nil {
		return nil, err
	}
	if err := application.VerifyKPILinks(ctx, h.kpis, cmd.LinkedKPIs); err != nil {
		return nil, err
	}

	root, err := domain.NewMilestone(cmd.ProjectID, cmd.Title, cmd.Session.UserID)
	if err != nil {
		return nil, err
	}
	root.SetDescription(cmd.Description)
	root.SetDueDate(cmd.DueDate)
	supervisor := cmd.SupervisorID
	if supervisor == uuid.Nil {
		supervisor = cmd.Session.UserID
	}
	root.SetSupervisor(supervisor)
	if len(cmd.LinkedKPIs) > 0 {
		if err := root.LinkKPIs(cmd.LinkedKPIs); err != nil {
			return nil, err
		}
	}

	tree, err := h.deps.run(ctx, cmd.Session, func(context.Context) (*domain.Tree, error) {
		return domain.NewTree(root)
	}, unchanged)
	if err != nil {
		return nil, err
	}

	h.deps.count(observability.MetricMilestonesCreated, 1)
	return &CreateMilestoneResult{MilestoneID: tree.RootID()}, nil
}

// DeleteMilestoneCommand removes a whole hierarchy.
type DeleteMilestoneCommand struct {
	Session     sharedApplication.Session
	MilestoneID uuid.UUID
}

// DeleteMilestoneHandler handles the DeleteMilestoneCommand.
type DeleteMilestoneHandler struct {
	deps Deps
}

// NewDeleteMilestoneHandler creates a new DeleteMilestoneHandler.
func NewDeleteMilestoneHandler(deps Deps) *DeleteMilestoneHandler {
	return &DeleteMilestoneHandler{deps: deps}
}

// Handle deletes the milestone and every node under it. The deletion event
// is queued in the same transaction as the row deletes.
func (h *DeleteMilestoneHandler) Handle(ctx context.Context, cmd DeleteMilestoneCommand) (int, error) {
	if err := cmd.Session.RequireSupervisor(); err != nil {
		return 0, err
	}
	count, err := sharedApplication.InUnitOfWork(ctx, h.deps.UoW, func(txCtx context.Context) (int, error) {
		tree, err := h.deps.Repo.FindByID(txCtx, cmd.MilestoneID)
		if err != nil {
			return 0, err
		}
		tree.MarkDeleted()
		if err := h.deps.queue(txCtx, cmd.Session, tree); err != nil {
			return 0, err
		}
		if err := h.deps.Repo.Delete(txCtx, cmd.MilestoneID); err != nil {
			return 0, err
		}
		return tree.Len(), nil
	})
	if err != nil {
		return 0, err
	}
	h.deps.invalidate(ctx, cmd.MilestoneID)
	h.deps.count(observability.MetricNodesRemoved, count)
	return count, nil
}
