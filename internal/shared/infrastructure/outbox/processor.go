package outbox

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/keel/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/keel/pkg/observability"
)

// ProcessorConfig tunes the relay loop.
type ProcessorConfig struct {
	PollInterval time.Duration
	BatchSize    int
	// MaxRetries is the number of failed attempts after which a message is
	// dead-lettered. Zero or less dead-letters on the first failure.
	MaxRetries       int
	RetryBackoffBase time.Duration
	RetryBackoffMax  time.Duration
}

func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		PollInterval:     100 * time.Millisecond,
		BatchSize:        100,
		MaxRetries:       5,
		RetryBackoffBase: time.Second,
		RetryBackoffMax:  time.Minute,
	}
}

// Stats is a point-in-time snapshot of the relay.
type Stats struct {
	IsRunning       bool
	PublishedCount  uint64
	FailedCount     uint64
	DeadCount       uint64
	LagSeconds      float64
	LastError       string
	LastErrorAt     *time.Time
	LastProcessedAt *time.Time
	OldestMessageAt *time.Time
}

// Processor relays hierarchy events from the outbox table to the broker.
// Delivery is at-least-once: a message is marked published only after the
// broker accepted it.
type Processor struct {
	repo      Repository
	publisher eventbus.Publisher
	config    ProcessorConfig
	logger    *slog.Logger
	metrics   observability.Metrics

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	stats  Stats
}

func NewProcessor(repo Repository, publisher eventbus.Publisher, config ProcessorConfig, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		repo:      repo,
		publisher: publisher,
		config:    config,
		logger:    logger.With("component", "outbox"),
	}
}

// WithMetrics makes the relay count published, failed and dead messages.
func (p *Processor) WithMetrics(m observability.Metrics) *Processor {
	p.metrics = m
	return p
}

// Start launches the poll loop. Calling Start on a running processor is a no-op.
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(loopCtx, p.done)

	p.logger.Info("outbox relay started", "poll_interval", p.config.PollInterval, "batch_size", p.config.BatchSize)
	return nil
}

// Stop cancels the loop and waits for the in-flight batch.
func (p *Processor) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.logger.Info("outbox relay stopped")
}

func (p *Processor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *Processor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.ProcessOnce(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("outbox poll failed", "error", err)
			}
		}
	}
}

// ProcessOnce relays one batch synchronously.
func (p *Processor) ProcessOnce(ctx context.Context) error {
	batch, err := p.repo.GetUnpublished(ctx, p.config.BatchSize)
	if err != nil {
		p.update(func(s *Stats) { s.noteError(err) })
		return err
	}
	p.update(func(s *Stats) { s.noteBatch(batch) })

	for _, msg := range batch {
		p.relay(ctx, msg)
	}
	return nil
}

func (p *Processor) relay(ctx context.Context, msg *Message) {
	err := p.publisher.Publish(ctx, msg.RoutingKey, msg.Payload)
	if err == nil {
		if err := p.repo.MarkPublished(ctx, msg.ID); err != nil {
			p.logger.Error("mark published failed", "id", msg.ID, "event_id", msg.EventID, "error", err)
			return
		}
		p.update(func(s *Stats) { s.PublishedCount++ })
		p.count("published")
		return
	}

	meta := decodeMetadata(msg.Metadata)
	p.logger.Warn("publish failed",
		"id", msg.ID,
		"routing_key", msg.RoutingKey,
		"event_id", msg.EventID,
		"attempt", msg.RetryCount+1,
		"correlation_id", meta.CorrelationID,
		"user_id", meta.UserID,
		"error", err,
	)

	if msg.RetryCount+1 >= p.config.MaxRetries {
		p.update(func(s *Stats) { s.DeadCount++; s.noteError(err) })
		p.count("dead")
		if markErr := p.repo.MarkDead(ctx, msg.ID, err.Error()); markErr != nil {
			p.logger.Error("mark dead failed", "id", msg.ID, "error", markErr)
		}
		return
	}

	p.update(func(s *Stats) { s.FailedCount++; s.noteError(err) })
	p.count("failed")
	retryAt := time.Now().Add(p.RetryBackoff(msg.RetryCount + 1))
	if markErr := p.repo.MarkFailed(ctx, msg.ID, err.Error(), retryAt); markErr != nil {
		p.logger.Error("mark failed failed", "id", msg.ID, "error", markErr)
	}
}

// RetryBackoff is the delay before the given attempt: base doubled per
// prior attempt, capped at the configured maximum.
func (p *Processor) RetryBackoff(attempt int) time.Duration {
	base, limit := p.config.RetryBackoffBase, p.config.RetryBackoffMax
	if base <= 0 {
		base = time.Second
	}
	if limit <= 0 {
		limit = time.Minute
	}
	delay := base
	for n := 1; n < attempt && delay < limit; n++ {
		delay *= 2
	}
	return min(delay, limit)
}

// GetStats returns a copy of the relay counters.
func (p *Processor) GetStats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stats
	s.IsRunning = p.cancel != nil
	return s
}

func (p *Processor) update(fn func(*Stats)) {
	p.mu.Lock()
	fn(&p.stats)
	p.mu.Unlock()
}

func (p *Processor) count(outcome string) {
	if p.metrics != nil {
		p.metrics.Counter(observability.MetricOutboxMessages, 1, observability.T("outcome", outcome))
	}
}

func (s *Stats) noteError(err error) {
	now := time.Now()
	s.LastError = err.Error()
	s.LastErrorAt = &now
}

func (s *Stats) noteBatch(batch []*Message) {
	now := time.Now()
	s.LastProcessedAt = &now
	s.OldestMessageAt = nil
	s.LagSeconds = 0
	for _, msg := range batch {
		if s.OldestMessageAt == nil || msg.CreatedAt.Before(*s.OldestMessageAt) {
			created := msg.CreatedAt
			s.OldestMessageAt = &created
		}
	}
	if s.OldestMessageAt != nil {
		s.LagSeconds = now.Sub(*s.OldestMessageAt).Seconds()
	}
}

func decodeMetadata(raw json.RawMessage) eventbus.EventMetadata {
	var meta eventbus.EventMetadata
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &meta)
	}
	return meta
}
