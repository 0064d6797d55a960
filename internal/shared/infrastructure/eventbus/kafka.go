package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// DefaultKafkaTopic carries every hierarchy event; the routing key travels
// as the message key and a header.
const DefaultKafkaTopic = "keel.hierarchy"

const routingKeyHeader = "routing_key"

// KafkaPublisher publishes events to a single Kafka topic.
type KafkaPublisher struct {
	writer *kafka.Writer
	topic  string
	logger *slog.Logger
}

// NewKafkaPublisher creates a publisher writing to topic on brokers.
func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	if topic == "" {
		topic = DefaultKafkaTopic
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Kafka publisher configured", "brokers", brokers, "topic", topic)
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			RequiredAcks:           kafka.RequireAll,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		},
		topic:  topic,
		logger: logger,
	}, nil
}

// Publish writes the payload keyed by the aggregate id when the payload is
// an envelope, so events of one milestone keep their order.
func (p *KafkaPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	key := []byte(routingKey)
	var envelope ConsumedEvent
	if err := json.Unmarshal(payload, &envelope); err == nil && envelope.AggregateID != uuid.Nil {
		key = []byte(envelope.AggregateID.String())
	}

	err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:     key,
		Value:   payload,
		Time:    time.Now().UTC(),
		Headers: []kafka.Header{{Key: routingKeyHeader, Value: []byte(routingKey)}},
	})
	if err != nil {
		p.logger.Error("failed to publish message", "routing_key", routingKey, "topic", p.topic, "error", err)
		return err
	}
	p.logger.Debug("message published", "routing_key", routingKey, "topic", p.topic, "size", len(payload))
	return nil
}

// Close flushes pending writes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// KafkaConsumerConfig configures the Kafka consumer.
type KafkaConsumerConfig struct {
	Brokers []string
	GroupID string
	Topic   string
	Logger  *slog.Logger
}

// KafkaConsumer reads envelopes from Kafka and dispatches them through a
// ConsumerRegistry. Offsets are committed only after a successful dispatch.
type KafkaConsumer struct {
	reader   *kafka.Reader
	registry *ConsumerRegistry
	logger   *slog.Logger
}

// NewKafkaConsumer creates a consumer group reader.
func NewKafkaConsumer(cfg KafkaConsumerConfig, registry *ConsumerRegistry) (*KafkaConsumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka consumer requires at least one broker")
	}
	if cfg.GroupID == "" {
		return nil, fmt.Errorf("kafka consumer requires group id")
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultKafkaTopic
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  500 * time.Millisecond,
	})
	return &KafkaConsumer{reader: reader, registry: registry, logger: cfg.Logger}, nil
}

// RegisterConsumer registers an event consumer.
func (c *KafkaConsumer) RegisterConsumer(consumer EventConsumer) {
	c.registry.Register(consumer)
}

// Start fetches and dispatches messages until ctx is cancelled.
func (c *KafkaConsumer) Start(ctx context.Context) error {
	c.logger.Info("started consuming events", "topic", c.reader.Config().Topic)
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ctx.Err()
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		event, ok := decodeKafkaMessage(msg)
		if !ok {
			c.logger.Error("failed to unmarshal event", "offset", msg.Offset, "partition", msg.Partition)
		} else if err := c.registry.Dispatch(ctx, event); err != nil {
			// Leave the offset uncommitted so the group redelivers it.
			c.logger.Error("event dispatch failed", "routing_key", event.RoutingKey, "event_id", event.EventID, "error", err)
			continue
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("failed to commit offset", "offset", msg.Offset, "error", err)
		}
	}
}

// Close closes the reader.
func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}

func decodeKafkaMessage(msg kafka.Message) (*ConsumedEvent, bool) {
	var key string
	for _, h := range msg.Headers {
		if h.Key == routingKeyHeader {
			key = string(h.Value)
		}
	}
	event, err := decodeEvent(msg.Value, key)
	return event, err == nil
}
