package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// ConsumerRegistry fans an event out to every consumer subscribed to its
// routing key. It is shared by the in-process bus and the broker consumers.
type ConsumerRegistry struct {
	mu     sync.RWMutex
	byKey  map[string][]EventConsumer
	logger *slog.Logger
}

func NewConsumerRegistry(logger *slog.Logger) *ConsumerRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsumerRegistry{byKey: make(map[string][]EventConsumer), logger: logger}
}

func (r *ConsumerRegistry) Register(consumer EventConsumer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, key := range consumer.EventTypes() {
		r.byKey[key] = append(r.byKey[key], consumer)
	}
}

// Dispatch delivers event to all subscribers, even after one fails. The
// returned error joins every failure so a broker can redeliver.
func (r *ConsumerRegistry) Dispatch(ctx context.Context, event *ConsumedEvent) error {
	r.mu.RLock()
	subscribers := slices.Clone(r.byKey[event.RoutingKey])
	r.mu.RUnlock()

	var errs []error
	for _, c := range subscribers {
		if err := c.Handle(ctx, event); err != nil {
			r.logger.Error("event consumer failed",
				"routing_key", event.RoutingKey,
				"event_id", event.EventID,
				"consumer", fmt.Sprintf("%T", c),
				"error", err,
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// EventTypes returns the subscribed routing keys in sorted order.
func (r *ConsumerRegistry) EventTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.byKey))
	for k := range r.byKey {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Len counts subscriptions; a consumer with two routing keys counts twice.
func (r *ConsumerRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, cs := range r.byKey {
		n += len(cs)
	}
	return n
}
