package queries

import (
	"context"

	"github.com/felixgeelhaar/keel/internal/hierarchy/application"
	"github.com/felixgeelhaar/keel/internal/hierarchy/domain"
	"github.com/google/uuid"
)

// ExportPlanHandler renders a stored hierarchy as a YAML plan.
type ExportPlanHandler struct {
	repo domain.Repository
}

// NewExportPlanHandler creates a new ExportPlanHandler.
func NewExportPlanHandler(repo domain.Repository) *ExportPlanHandler {
	return &ExportPlanHandler{repo: repo}
}

// Handle returns the plan document for the milestone.
func (h *ExportPlanHandler) Handle(ctx context.Context, milestoneID uuid.UUID) ([]byte, error) {
	tree, err := h.repo.FindByID(ctx, milestoneID)
	if err != nil {
		return nil, err
	}
	return application.ExportPlan(tree).Marshal()
}
