package domain

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is a fact raised by an aggregate and relayed through the
// outbox. RoutingKey doubles as the event type.
type DomainEvent interface {
	EventID() uuid.UUID
	AggregateID() uuid.UUID
	AggregateType() string
	RoutingKey() string
	OccurredAt() time.Time
	Metadata() EventMetadata
}

// EventMetadata ties an event to the request and user that caused it.
// Zero ids mean unknown.
type EventMetadata struct {
	CorrelationID uuid.UUID
	CausationID   uuid.UUID
	UserID        uuid.UUID
}

// BaseEvent is embedded by concrete events. Its fields are unexported so
// the JSON body of an event holds only the event's own fields.
type BaseEvent struct {
	id            uuid.UUID
	aggregateID   uuid.UUID
	aggregateType string
	routingKey    string
	at            time.Time
	meta          EventMetadata
}

func NewBaseEvent(aggregateID uuid.UUID, aggregateType, routingKey string) BaseEvent {
	return BaseEvent{
		id:            uuid.New(),
		aggregateID:   aggregateID,
		aggregateType: aggregateType,
		routingKey:    routingKey,
		at:            time.Now().UTC(),
	}
}

func (e BaseEvent) EventID() uuid.UUID      { return e.id }
func (e BaseEvent) AggregateID() uuid.UUID  { return e.aggregateID }
func (e BaseEvent) AggregateType() string   { return e.aggregateType }
func (e BaseEvent) RoutingKey() string      { return e.routingKey }
func (e BaseEvent) OccurredAt() time.Time   { return e.at }
func (e BaseEvent) Metadata() EventMetadata { return e.meta }

// SetMetadata is called by the command pipeline before the event is queued.
func (e *BaseEvent) SetMetadata(meta EventMetadata) {
	e.meta = meta
}
