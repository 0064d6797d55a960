package application

import (
	"context"

	"github.com/felixgeelhaar/keel/internal/shared/domain"
	"github.com/felixgeelhaar/keel/pkg/observability"
	"github.com/google/uuid"
)

type metadataSetter interface {
	SetMetadata(metadata domain.EventMetadata)
}

// NewEventMetadata creates command-scoped metadata for domain events.
func NewEventMetadata(userID uuid.UUID) domain.EventMetadata {
	return domain.EventMetadata{
		CorrelationID: uuid.New(),
		CausationID:   uuid.New(),
		UserID:        userID,
	}
}

// EventMetadataFor builds metadata for the events of one command issued by
// s. A UUID correlation id already on ctx is reused.
func EventMetadataFor(ctx context.Context, s Session) domain.EventMetadata {
	md := NewEventMetadata(s.UserID)
	if id, err := uuid.Parse(observability.CorrelationIDFromContext(ctx)); err == nil {
		md.CorrelationID = id
	}
	return md
}

// ApplyEventMetadata sets metadata on all events that support it.
func ApplyEventMetadata(events []domain.DomainEvent, metadata domain.EventMetadata) {
	for _, event := range events {
		if setter, ok := event.(metadataSetter); ok {
			setter.SetMetadata(metadata)
		}
	}
}
