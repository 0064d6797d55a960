package eventbus

import (
	"context"
	"log/slog"
)

// Publisher delivers an outbox payload under a routing key.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload []byte) error
	Close() error
}

// NoopPublisher drops every event. Used when EVENT_BROKER=none.
type NoopPublisher struct {
	logger *slog.Logger
}

func NewNoopPublisher(logger *slog.Logger) *NoopPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoopPublisher{logger: logger}
}

func (p *NoopPublisher) Publish(_ context.Context, routingKey string, payload []byte) error {
	p.logger.Debug("event dropped", "routing_key", routingKey, "size", len(payload))
	return nil
}

func (p *NoopPublisher) Close() error { return nil }
