package eventbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventConsumer reacts to hierarchy events by routing key.
type EventConsumer interface {
	// EventTypes lists the routing keys to deliver, e.g. "hierarchy.node.added".
	EventTypes() []string
	Handle(ctx context.Context, event *ConsumedEvent) error
}

// ConsumedEvent is the envelope written to the outbox and carried by every
// broker. Payload is the domain event body.
type ConsumedEvent struct {
	EventID       uuid.UUID       `json:"event_id"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	RoutingKey    string          `json:"routing_key"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
	Metadata      EventMetadata   `json:"metadata,omitempty"`
}

// EventMetadata carries the tracing fields of the command that raised the event.
type EventMetadata struct {
	UserID        uuid.UUID `json:"user_id,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	CausationID   string    `json:"causation_id,omitempty"`
}

// Consumer is a broker subscription feeding a ConsumerRegistry.
type Consumer interface {
	// Start blocks until ctx is cancelled or the subscription fails.
	Start(ctx context.Context) error
	RegisterConsumer(consumer EventConsumer)
	Close() error
}

// decodeEvent parses an envelope. fallbackKey fills in the routing key when
// the envelope has none, as with messages published by older writers.
func decodeEvent(body []byte, fallbackKey string) (*ConsumedEvent, error) {
	event := &ConsumedEvent{}
	if err := json.Unmarshal(body, event); err != nil {
		return nil, err
	}
	if event.RoutingKey == "" {
		event.RoutingKey = fallbackKey
	}
	return event, nil
}
