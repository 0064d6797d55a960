package queries

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/keel/internal/hierarchy/application"
	"github.com/felixgeelhaar/keel/internal/hierarchy/domain"
	"github.com/google/uuid"
)

// GetCapacityQuery asks for the remaining budget of a parent node.
type GetCapacityQuery struct {
	NodeID uuid.UUID
}

// GetCapacityHandler handles the GetCapacityQuery.
type GetCapacityHandler struct {
	repo domain.Repository
}

// NewGetCapacityHandler creates a new GetCapacityHandler.
func NewGetCapacityHandler(repo domain.Repository) *GetCapacityHandler {
	return &GetCapacityHandler{repo: repo}
}

// Handle describes the node's allocation. Tasks are leaves and fail with
// domain.ErrInvalidParent instead of reporting a budget they cannot use.
func (h *GetCapacityHandler) Handle(ctx context.Context, q GetCapacityQuery) (*application.CapacityView, error) {
	tree, err := h.repo.FindByNodeID(ctx, q.NodeID)
	if err != nil {
		return nil, err
	}
	c, err := domain.NewCapacityTracker(tree).Describe(q.NodeID)
	if err != nil {
		return nil, err
	}
	view := application.NewCapacityView(c)
	return &view, nil
}

func isViolation(err error) bool {
	return errors.Is(err, domain.ErrCapacityViolation)
}
