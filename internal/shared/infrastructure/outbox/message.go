package outbox

import (
	"encoding/json"
	"time"

	"github.com/felixgeelhaar/keel/internal/shared/domain"
	"github.com/felixgeelhaar/keel/internal/shared/infrastructure/eventbus"
	"github.com/google/uuid"
)

// Message is one row of the outbox table. Payload holds the full envelope
// consumers decode; Metadata repeats the tracing fields for log lines.
type Message struct {
	ID               int64
	EventID          uuid.UUID
	AggregateType    string
	AggregateID      uuid.UUID
	EventType        string
	RoutingKey       string
	Payload          json.RawMessage
	Metadata         json.RawMessage
	CreatedAt        time.Time
	PublishedAt      *time.Time
	NextRetryAt      *time.Time
	RetryCount       int
	LastError        *string
	DeadLetteredAt   *time.Time
	DeadLetterReason *string
}

// NewMessage wraps a domain event in an eventbus.ConsumedEvent envelope.
func NewMessage(event domain.DomainEvent) (*Message, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	meta := event.Metadata()
	metadata := eventbus.EventMetadata{UserID: meta.UserID}
	if meta.CorrelationID != uuid.Nil {
		metadata.CorrelationID = meta.CorrelationID.String()
	}
	if meta.CausationID != uuid.Nil {
		metadata.CausationID = meta.CausationID.String()
	}

	envelope, err := json.Marshal(eventbus.ConsumedEvent{
		EventID:       event.EventID(),
		AggregateID:   event.AggregateID(),
		AggregateType: event.AggregateType(),
		RoutingKey:    event.RoutingKey(),
		OccurredAt:    event.OccurredAt(),
		Payload:       body,
		Metadata:      metadata,
	})
	if err != nil {
		return nil, err
	}

	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, err
	}

	return &Message{
		EventID:       event.EventID(),
		AggregateType: event.AggregateType(),
		AggregateID:   event.AggregateID(),
		EventType:     event.RoutingKey(),
		RoutingKey:    event.RoutingKey(),
		Payload:       envelope,
		Metadata:      metadataJSON,
		CreatedAt:     event.OccurredAt(),
	}, nil
}

// NewMessages converts a batch of domain events.
func NewMessages(events []domain.DomainEvent) ([]*Message, error) {
	msgs := make([]*Message, 0, len(events))
	for _, event := range events {
		msg, err := NewMessage(event)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}
