// Package domain holds the building blocks shared by aggregates: identity,
// optimistic versioning and the pending event list the outbox drains.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// AggregateRoot is the unit a repository loads and saves.
type AggregateRoot interface {
	ID() uuid.UUID
	Version() int
	DomainEvents() []DomainEvent
	ClearDomainEvents()
}

// BaseAggregateRoot carries identity, timestamps, the stored version and
// the events raised since the last save.
type BaseAggregateRoot struct {
	id        uuid.UUID
	createdAt time.Time
	updatedAt time.Time
	version   int
	events    []DomainEvent
}

// NewBaseAggregateRootWithID starts a new aggregate at version 0.
func NewBaseAggregateRootWithID(id uuid.UUID) BaseAggregateRoot {
	now := time.Now().UTC()
	return BaseAggregateRoot{id: id, createdAt: now, updatedAt: now}
}

// RehydrateBaseAggregateRoot restores an aggregate loaded from storage.
func RehydrateBaseAggregateRoot(id uuid.UUID, createdAt, updatedAt time.Time, version int) BaseAggregateRoot {
	return BaseAggregateRoot{id: id, createdAt: createdAt, updatedAt: updatedAt, version: version}
}

func (a *BaseAggregateRoot) ID() uuid.UUID        { return a.id }
func (a *BaseAggregateRoot) CreatedAt() time.Time { return a.createdAt }
func (a *BaseAggregateRoot) UpdatedAt() time.Time { return a.updatedAt }
func (a *BaseAggregateRoot) Version() int         { return a.version }

// DomainEvents returns the events raised since the last save.
func (a *BaseAggregateRoot) DomainEvents() []DomainEvent {
	return a.events
}

// ClearDomainEvents is called once the events are in the outbox.
func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.events = nil
}

// AddDomainEvent records an event and touches the aggregate.
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.events = append(a.events, event)
	a.updatedAt = time.Now().UTC()
}

// IncrementVersion is called by repositories after a successful save.
func (a *BaseAggregateRoot) IncrementVersion() {
	a.version++
}
