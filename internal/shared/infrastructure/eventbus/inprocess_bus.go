package eventbus

import (
	"context"
	"log/slog"
	"time"
)

// InProcessEventBus is the Publisher for local mode. Publish decodes the
// envelope and runs the registered consumers before returning, so a cache
// entry is gone by the time the outbox marks the event published.
type InProcessEventBus struct {
	registry *ConsumerRegistry
	logger   *slog.Logger
}

func NewInProcessEventBus(logger *slog.Logger) *InProcessEventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &InProcessEventBus{registry: NewConsumerRegistry(logger), logger: logger}
}

func (b *InProcessEventBus) RegisterConsumer(consumer EventConsumer) {
	b.registry.Register(consumer)
}

// Publish never fails: a malformed payload or a failing consumer is logged
// and the event counts as delivered. There is no broker to redeliver it.
func (b *InProcessEventBus) Publish(ctx context.Context, routingKey string, payload []byte) error {
	event, err := decodeEvent(payload, routingKey)
	if err != nil {
		b.logger.Error("dropping undecodable event", "routing_key", routingKey, "error", err)
		return nil
	}
	if err := b.Dispatch(ctx, event); err != nil {
		b.logger.Warn("local delivery incomplete", "routing_key", event.RoutingKey, "event_id", event.EventID, "error", err)
	}
	return nil
}

// Dispatch delivers an already decoded event and reports consumer errors.
func (b *InProcessEventBus) Dispatch(ctx context.Context, event *ConsumedEvent) error {
	start := time.Now()
	err := b.registry.Dispatch(ctx, event)
	b.logger.Debug("event dispatched",
		"routing_key", event.RoutingKey,
		"event_id", event.EventID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return err
}

func (b *InProcessEventBus) Close() error { return nil }
