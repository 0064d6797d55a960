package outbox

import (
	"encoding/json"
	"testing"

	"github.com/felixgeelhaar/keel/internal/shared/domain"
	"github.com/felixgeelhaar/keel/internal/shared/infrastructure/eventbus"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testEvent is a concrete implementation of DomainEvent for testing.
type testEvent struct {
	domain.BaseEvent
	Title string `json:"title"`
}

func newTestEvent(milestoneID uuid.UUID, title string) *testEvent {
	return &testEvent{
		BaseEvent: domain.NewBaseEvent(milestoneID, "Milestone", "hierarchy.node.added"),
		Title:     title,
	}
}

func TestNewMessage(t *testing.T) {
	t.Run("copies event identity", func(t *testing.T) {
		aggregateID := uuid.New()
		event := newTestEvent(aggregateID, "phase one")

		msg, err := NewMessage(event)

		require.NoError(t, err)
		assert.Equal(t, event.EventID(), msg.EventID)
		assert.Equal(t, "Milestone", msg.AggregateType)
		assert.Equal(t, aggregateID, msg.AggregateID)
		assert.Equal(t, "hierarchy.node.added", msg.EventType)
		assert.Equal(t, "hierarchy.node.added", msg.RoutingKey)
		assert.Equal(t, event.OccurredAt(), msg.CreatedAt)
		assert.Zero(t, msg.ID)
		assert.Nil(t, msg.PublishedAt)
		assert.Zero(t, msg.RetryCount)
	})

	t.Run("payload is a consumable envelope", func(t *testing.T) {
		event := newTestEvent(uuid.New(), "phase one")
		meta := domain.EventMetadata{CorrelationID: uuid.New(), CausationID: uuid.New(), UserID: uuid.New()}
		event.SetMetadata(meta)

		msg, err := NewMessage(event)
		require.NoError(t, err)

		var envelope eventbus.ConsumedEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &envelope))
		assert.Equal(t, event.EventID(), envelope.EventID)
		assert.Equal(t, event.AggregateID(), envelope.AggregateID)
		assert.Equal(t, "hierarchy.node.added", envelope.RoutingKey)
		assert.Equal(t, meta.UserID, envelope.Metadata.UserID)
		assert.Equal(t, meta.CorrelationID.String(), envelope.Metadata.CorrelationID)

		var body struct {
			Title string `json:"title"`
		}
		require.NoError(t, json.Unmarshal(envelope.Payload, &body))
		assert.Equal(t, "phase one", body.Title)
		assert.Contains(t, string(msg.Metadata), meta.CausationID.String())
	})

	t.Run("empty metadata stays empty", func(t *testing.T) {
		msg, err := NewMessage(newTestEvent(uuid.New(), "x"))
		require.NoError(t, err)
		assert.NotContains(t, string(msg.Metadata), "correlation_id")
	})

	t.Run("batch", func(t *testing.T) {
		id := uuid.New()
		msgs, err := NewMessages([]domain.DomainEvent{newTestEvent(id, "a"), newTestEvent(id, "b")})
		require.NoError(t, err)
		assert.Len(t, msgs, 2)
	})
}
