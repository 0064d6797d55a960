package domain_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/felixgeelhaar/keel/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type weightChanged struct {
	domain.BaseEvent
	Weight float64 `json:"weight"`
}

func TestNewBaseEvent(t *testing.T) {
	milestoneID := uuid.New()
	before := time.Now().UTC()

	e := domain.NewBaseEvent(milestoneID, "Milestone", "hierarchy.node.weight_changed")

	assert.NotEqual(t, uuid.Nil, e.EventID())
	assert.Equal(t, milestoneID, e.AggregateID())
	assert.Equal(t, "Milestone", e.AggregateType())
	assert.Equal(t, "hierarchy.node.weight_changed", e.RoutingKey())
	assert.WithinDuration(t, before, e.OccurredAt(), time.Second)
	assert.Equal(t, domain.EventMetadata{}, e.Metadata())

	assert.NotEqual(t, e.EventID(), domain.NewBaseEvent(milestoneID, "Milestone", "x").EventID())
}

func TestBaseEvent_SetMetadata(t *testing.T) {
	e := &weightChanged{BaseEvent: domain.NewBaseEvent(uuid.New(), "Milestone", "hierarchy.node.weight_changed")}
	meta := domain.EventMetadata{CorrelationID: uuid.New(), CausationID: uuid.New(), UserID: uuid.New()}

	e.SetMetadata(meta)

	var de domain.DomainEvent = e
	assert.Equal(t, meta, de.Metadata())
}

func TestBaseEvent_JSONBodyHasOnlyEventFields(t *testing.T) {
	e := weightChanged{BaseEvent: domain.NewBaseEvent(uuid.New(), "Milestone", "hierarchy.node.weight_changed"), Weight: 40}

	body, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"weight":40}`, string(body))
}
