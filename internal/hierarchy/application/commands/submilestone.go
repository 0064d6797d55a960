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

// NodeResult identifies a newly inserted node and what is left of its
// parent's budget.
type NodeResult struct {
	NodeID      uuid.UUID
	MilestoneID uuid.UUID
	Remaining   float64
}

// AddSubMilestoneCommand adds a sub-milestone under the milestone root or
// under another sub-milestone when ParentID is set.
type AddSubMilestoneCommand struct {
	Session      sharedApplication.Session
	MilestoneID  uuid.UUID
	ParentID     uuid.UUID
	Title        string
	Description  string
	Weight       float64
	DueDate      *time.Time
	SupervisorID uuid.UUID
	LinkedKPIs   []domain.KPILink
}

// AddSubMilestoneHandler handles the AddSubMilestoneCommand.
type AddSubMilestoneHandler struct {
	deps Deps
	kpis application.KPIDirectory
}

// NewAddSubMilestoneHandler creates a new AddSubMilestoneHandler.
func NewAddSubMilestoneHandler(deps Deps, kpis application.KPIDirectory) *AddSubMilestoneHandler {
	return &AddSubMilestoneHandler{deps: deps, kpis: kpis}
}

// Handle executes the AddSubMilestoneCommand.
func (h *AddSubMilestoneHandler) Handle(ctx context.Context, cmd AddSubMilestoneCommand) (*NodeResult, error) {
	if err := cmd.Session.RequireSupervisor(); err != nil {
		return nil, err
	}
	if err := application.VerifyKPILinks(ctx, h.kpis, cmd.LinkedKPIs); err != nil {
		return nil, err
	}

	sub, err := domain.NewSubMilestone(cmd.Title, cmd.Weight, cmd.Session.UserID)
	if err != nil {
		return nil, err
	}
	sub.SetDescription(cmd.Description)
	sub.SetDueDate(cmd.DueDate)
	if cmd.SupervisorID != uuid.Nil {
		sub.SetSupervisor(cmd.SupervisorID)
	}
	if len(cmd.LinkedKPIs) > 0 {
		if err := sub.LinkKPIs(cmd.LinkedKPIs); err != nil {
			return nil, err
		}
	}

	result := &NodeResult{NodeID: sub.ID()}
	tree, err := h.deps.onMilestone(ctx, cmd.Session, cmd.MilestoneID, func(_ context.Context, tree *domain.Tree) error {
		parentID := cmd.ParentID
		if parentID == uuid.Nil {
			parentID = tree.RootID()
		}
		if err := tree.InsertChild(parentID, sub); err != nil {
			h.deps.countRejection(err, domain.KindSubMilestone)
			return err
		}
		remaining, err := domain.NewCapacityTracker(tree).RemainingFor(parentID)
		result.Remaining = remaining
		return ignoreViolation(err)
	})
	if err != nil {
		return nil, err
	}

	result.MilestoneID = tree.RootID()
	h.deps.count(observability.MetricNodesAdded, 1, observability.T("kind", string(domain.KindSubMilestone)))
	return result, nil
}
