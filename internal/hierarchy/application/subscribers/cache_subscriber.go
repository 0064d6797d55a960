// Package subscribers reacts to hierarchy events consumed from the bus.
package subscribers

import (
	"context"
	"log/slog"

	"github.com/felixgeelhaar/keel/internal/hierarchy/application"
	"github.com/felixgeelhaar/keel/internal/hierarchy/domain"
	"github.com/felixgeelhaar/keel/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/keel/pkg/observability"
	"github.com/google/uuid"
)

// CacheInvalidationSubscriber drops cached hierarchy views when another
// process changes a milestone. Commands invalidate their own writes; this
// covers the other replicas sharing the cache.
type CacheInvalidationSubscriber struct {
	cache   application.HierarchyCache
	metrics observability.Metrics
	logger  *slog.Logger
}

// NewCacheInvalidationSubscriber creates a new subscriber.
func NewCacheInvalidationSubscriber(cache application.HierarchyCache, metrics observability.Metrics, logger *slog.Logger) *CacheInvalidationSubscriber {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CacheInvalidationSubscriber{cache: cache, metrics: metrics, logger: logger}
}

// EventTypes returns every hierarchy routing key.
func (s *CacheInvalidationSubscriber) EventTypes() []string {
	return domain.RoutingKeys
}

// Handle invalidates the event's milestone.
func (s *CacheInvalidationSubscriber) Handle(ctx context.Context, event *eventbus.ConsumedEvent) error {
	s.metrics.Counter(observability.MetricEventsConsumed, 1, observability.T("routing_key", event.RoutingKey))
	if event.AggregateType != domain.AggregateType || event.AggregateID == uuid.Nil {
		s.logger.DebugContext(ctx, "ignoring event without milestone",
			"routing_key", event.RoutingKey,
			"event_id", event.EventID,
		)
		return nil
	}
	if err := s.cache.Invalidate(ctx, event.AggregateID); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate hierarchy cache",
			"milestone_id", event.AggregateID,
			"routing_key", event.RoutingKey,
			"error", err,
		)
		return err
	}
	return nil
}
