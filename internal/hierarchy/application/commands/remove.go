package commands

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/keel/internal/hierarchy/domain"
	sharedApplication "github.com/felixgeelhaar/keel/internal/shared/application"
	"github.com/felixgeelhaar/keel/pkg/observability"
	"github.com/google/uuid"
)

// RemoveNodeCommand detaches a sub-milestone or task with its subtree.
// When Kind is set the node must be of that kind.
type RemoveNodeCommand struct {
	Session sharedApplication.Session
	NodeID  uuid.UUID
	Kind    domain.Kind
}

// RemoveNodeResult lists every node id that was removed.
type RemoveNodeResult struct {
	MilestoneID uuid.UUID
	Removed     []uuid.UUID
}

// RemoveNodeHandler handles the RemoveNodeCommand.
type RemoveNodeHandler struct {
	deps Deps
}

// NewRemoveNodeHandler creates a new RemoveNodeHandler.
func NewRemoveNodeHandler(deps Deps) *RemoveNodeHandler {
	return &RemoveNodeHandler{deps: deps}
}

// Handle removes the node. Supervisors may remove any node; other users
// only nodes they created. The milestone root is deleted through
// DeleteMilestoneHandler instead.
func (h *RemoveNodeHandler) Handle(ctx context.Context, cmd RemoveNodeCommand) (*RemoveNodeResult, error) {
	result := &RemoveNodeResult{}
	tree, err := h.deps.onNode(ctx, cmd.Session, cmd.NodeID, func(_ context.Context, tree *domain.Tree) error {
		n, err := tree.Node(cmd.NodeID)
		if err != nil {
			return err
		}
		if cmd.Kind != "" && n.Kind() != cmd.Kind {
			return fmt.Errorf("%w: %s is a %s", domain.ErrNodeNotFound, cmd.NodeID, n.Kind())
		}
		if !cmd.Session.IsSupervisor() && n.CreatedBy() != cmd.Session.UserID {
			return fmt.Errorf("%w: only the creator or a supervisor can remove this node", sharedApplication.ErrForbidden)
		}
		removed, err := tree.Remove(cmd.NodeID)
		if err != nil {
			return err
		}
		result.Removed = removed
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.MilestoneID = tree.RootID()
	h.deps.count(observability.MetricNodesRemoved, len(result.Removed))
	if h.deps.Metrics != nil {
		h.deps.Metrics.Histogram(observability.MetricSubtreeSize, float64(len(result.Removed)))
	}
	return result, nil
}
