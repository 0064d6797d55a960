package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// ExchangeName is the durable topic exchange hierarchy events go to.
	ExchangeName = "keel.hierarchy"
	// DefaultConsumerQueueName is shared by all worker replicas so each
	// event is handled once.
	DefaultConsumerQueueName = "keel.hierarchy.consumer"
)

// openExchange dials url and declares the topic exchange on a fresh channel.
func openExchange(url, exchange string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	// durable, not auto-deleted, not internal, wait for confirmation
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return conn, ch, nil
}

func closeAMQP(conn *amqp.Connection, ch *amqp.Channel) error {
	var errs []error
	if ch != nil {
		errs = append(errs, ch.Close())
	}
	if conn != nil {
		errs = append(errs, conn.Close())
	}
	return errors.Join(errs...)
}

// RabbitMQPublisher publishes persistent JSON messages to the exchange.
type RabbitMQPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *slog.Logger
}

func NewRabbitMQPublisher(url string, logger *slog.Logger) (*RabbitMQPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, ch, err := openExchange(url, ExchangeName)
	if err != nil {
		return nil, err
	}
	logger.Info("rabbitmq publisher connected", "exchange", ExchangeName)
	return &RabbitMQPublisher{conn: conn, channel: ch, exchange: ExchangeName, logger: logger}, nil
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         payload,
	}
	if err := p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg); err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	p.logger.Debug("message published", "routing_key", routingKey, "size", len(payload))
	return nil
}

func (p *RabbitMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return closeAMQP(p.conn, p.channel)
}

// RabbitMQConsumerConfig configures NewRabbitMQConsumer. Empty fields take
// the package defaults.
type RabbitMQConsumerConfig struct {
	URL       string
	QueueName string
	Exchange  string
	Logger    *slog.Logger
}

// RabbitMQConsumer binds a durable queue to the routing keys of its
// registered consumers. Deliveries are acked after a successful dispatch and
// requeued otherwise; undecodable bodies are acked and dropped.
type RabbitMQConsumer struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	queue    string
	exchange string
	registry *ConsumerRegistry
	logger   *slog.Logger
	running  bool
}

func NewRabbitMQConsumer(cfg RabbitMQConsumerConfig, registry *ConsumerRegistry) (*RabbitMQConsumer, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.QueueName == "" {
		cfg.QueueName = DefaultConsumerQueueName
	}
	if cfg.Exchange == "" {
		cfg.Exchange = ExchangeName
	}

	conn, ch, err := openExchange(cfg.URL, cfg.Exchange)
	if err != nil {
		return nil, err
	}
	if _, err := ch.QueueDeclare(cfg.QueueName, true, false, false, false, nil); err != nil {
		_ = closeAMQP(conn, ch)
		return nil, fmt.Errorf("declare queue %s: %w", cfg.QueueName, err)
	}

	cfg.Logger.Info("rabbitmq consumer connected", "queue", cfg.QueueName, "exchange", cfg.Exchange)
	return &RabbitMQConsumer{
		conn:     conn,
		channel:  ch,
		queue:    cfg.QueueName,
		exchange: cfg.Exchange,
		registry: registry,
		logger:   cfg.Logger,
	}, nil
}

// RegisterConsumer adds consumer to the registry and binds its keys.
func (c *RabbitMQConsumer) RegisterConsumer(consumer EventConsumer) {
	c.registry.Register(consumer)

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range consumer.EventTypes() {
		if err := c.channel.QueueBind(c.queue, key, c.exchange, false, nil); err != nil {
			c.logger.Error("queue bind failed", "queue", c.queue, "routing_key", key, "error", err)
		}
	}
}

func (c *RabbitMQConsumer) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return errors.New("rabbitmq consumer already running")
	}
	c.running = true
	c.mu.Unlock()

	// One unacked delivery at a time keeps per-queue order.
	if err := c.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := c.channel.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}
	c.logger.Info("consuming events", "queue", c.queue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return errors.New("rabbitmq delivery channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

func (c *RabbitMQConsumer) handle(ctx context.Context, d amqp.Delivery) {
	event, err := decodeEvent(d.Body, d.RoutingKey)
	if err != nil {
		c.logger.Error("dropping undecodable event", "routing_key", d.RoutingKey, "error", err)
		_ = d.Ack(false)
		return
	}

	if err := c.registry.Dispatch(ctx, event); err != nil {
		if nackErr := d.Nack(false, true); nackErr != nil {
			c.logger.Error("nack failed", "event_id", event.EventID, "error", nackErr)
		}
		return
	}
	if err := d.Ack(false); err != nil {
		c.logger.Error("ack failed", "event_id", event.EventID, "error", err)
	}
}

// Close tears down the channel, which also ends a running Start.
func (c *RabbitMQConsumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	return closeAMQP(c.conn, c.channel)
}
