// Package queries implements the read side of the hierarchy. Queries never
// write to the hierarchy tables; the hierarchy view is served cache-aside.
package queries

import (
	"context"
	"log/slog"

	"github.com/felixgeelhaar/keel/internal/hierarchy/application"
	"github.com/felixgeelhaar/keel/internal/hierarchy/domain"
	"github.com/felixgeelhaar/keel/pkg/observability"
	"github.com/google/uuid"
)

// GetHierarchyQuery asks for a whole milestone tree.
type GetHierarchyQuery struct {
	MilestoneID uuid.UUID
}

// GetHierarchyHandler handles the GetHierarchyQuery.
type GetHierarchyHandler struct {
	repo    domain.Repository
	cache   application.HierarchyCache
	metrics observability.Metrics
	logger  *slog.Logger
}

// NewGetHierarchyHandler creates a new GetHierarchyHandler. cache may be nil.
func NewGetHierarchyHandler(repo domain.Repository, cache application.HierarchyCache, metrics observability.Metrics, logger *slog.Logger) *GetHierarchyHandler {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GetHierarchyHandler{repo: repo, cache: cache, metrics: metrics, logger: logger}
}

// Handle returns the rendered tree. Cache errors fall through to storage.
func (h *GetHierarchyHandler) Handle(ctx context.Context, q GetHierarchyQuery) (*application.HierarchyView, error) {
	if h.cache != nil {
		view, ok, err := h.cache.Get(ctx, q.MilestoneID)
		switch {
		case err != nil:
			h.logger.WarnContext(ctx, "hierarchy cache read failed", "milestone_id", q.MilestoneID, "error", err)
		case ok:
			h.metrics.Counter(observability.MetricCacheHits, 1)
			return view, nil
		default:
			h.metrics.Counter(observability.MetricCacheMisses, 1)
		}
	}

	view, err := observability.TimeOperation(ctx, h.metrics, "build_hierarchy", func() (*application.HierarchyView, error) {
		tree, err := h.repo.FindByID(ctx, q.MilestoneID)
		if err != nil {
			return nil, err
		}
		return application.BuildHierarchyView(tree)
	})
	if err != nil {
		return nil, err
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, view); err != nil {
			h.logger.WarnContext(ctx, "hierarchy cache write failed", "milestone_id", q.MilestoneID, "error", err)
		}
	}
	return view, nil
}
