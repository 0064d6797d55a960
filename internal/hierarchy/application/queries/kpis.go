package queries

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/keel/internal/hierarchy/application"
	"github.com/felixgeelhaar/keel/pkg/observability"
	"github.com/google/uuid"
)

// ApprovedKPIsHandler proxies the KPI directory.
type ApprovedKPIsHandler struct {
	dir     application.KPIDirectory
	metrics observability.Metrics
}

// NewApprovedKPIsHandler creates a new ApprovedKPIsHandler. Without a
// directory every lookup returns an empty list.
func NewApprovedKPIsHandler(dir application.KPIDirectory, metrics observability.Metrics) *ApprovedKPIsHandler {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &ApprovedKPIsHandler{dir: dir, metrics: metrics}
}

// Handle lists the KPIs userID may link work to.
func (h *ApprovedKPIsHandler) Handle(ctx context.Context, userID uuid.UUID) ([]application.KPIReference, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: userId is required", application.ErrValidation)
	}
	if h.dir == nil {
		return []application.KPIReference{}, nil
	}
	refs, err := h.dir.ApprovedForLinking(ctx, userID)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	h.metrics.Counter(observability.MetricKPIDirectoryCalls, 1, observability.T("outcome", outcome))
	if err != nil {
		return nil, err
	}
	if refs == nil {
		refs = []application.KPIReference{}
	}
	return refs, nil
}
