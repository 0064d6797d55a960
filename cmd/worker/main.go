package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/felixgeelhaar/keel/internal/app"
	"github.com/felixgeelhaar/keel/internal/hierarchy/application/subscribers"
	"github.com/felixgeelhaar/keel/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/keel/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/keel/pkg/config"
	"github.com/felixgeelhaar/keel/pkg/observability"
)

func main() {
	logger := observability.LoggerFromEnv()
	logger.Info("starting keel worker")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger = observability.LoggerFor(cfg.AppEnv, cfg.LogLevel, cfg.LogFormat, "")

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize container", "error", err)
		os.Exit(1)
	}
	defer container.Close()

	processor := container.OutboxProcessor
	pc := container.ProcessorConfig()
	logger.Info("starting outbox processor",
		"broker", cfg.EventBroker,
		"poll_interval", pc.PollInterval,
		"batch_size", pc.BatchSize,
		"max_retries", pc.MaxRetries,
	)
	if err := processor.Start(ctx); err != nil {
		logger.Error("failed to start outbox processor", "error", err)
		os.Exit(1)
	}

	cons, err := newCacheConsumer(cfg, container, logger)
	if err != nil {
		logger.Error("failed to create event consumer", "error", err)
		os.Exit(1)
	}
	if cons != nil {
		defer cons.Close()
		go func() {
			if err := cons.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("event consumer stopped", "error", err)
			}
		}()
	}

	go runEvery(ctx, cfg.OutboxCleanupInterval, func() {
		deleted, err := container.OutboxRepo.DeleteOld(ctx, cfg.OutboxRetentionDays)
		if err != nil {
			logger.Error("outbox cleanup failed", "error", err)
			return
		}
		if deleted > 0 {
			logger.Info("outbox cleanup completed", "deleted", deleted, "retention_days", cfg.OutboxRetentionDays)
		}
	})

	go runEvery(ctx, cfg.OutboxStatsInterval, func() {
		stats := processor.GetStats()
		container.Metrics.Gauge(observability.MetricOutboxLag, stats.LagSeconds)
		logger.Info("outbox stats",
			"running", stats.IsRunning,
			"published", stats.PublishedCount,
			"failed", stats.FailedCount,
			"dead", stats.DeadCount,
			"lag_seconds", stats.LagSeconds,
			"oldest_message_at", stats.OldestMessageAt,
			"last_processed_at", stats.LastProcessedAt,
			"last_error_at", stats.LastErrorAt,
			"last_error", stats.LastError,
		)
	})

	if cfg.WorkerHealthAddr != "" {
		startHealthServer(ctx, cfg.WorkerHealthAddr, processor, container.Health, logger)
	}

	<-ctx.Done()
	logger.Info("shutting down worker")
	processor.Stop()
	logger.Info("worker stopped")
}

// newCacheConsumer subscribes the cache invalidation subscriber to the
// configured broker so API replicas sharing Redis drop stale trees. The
// in-process bus is already wired by the container; other brokers need no
// consumer.
func newCacheConsumer(cfg *config.Config, container *app.Container, logger *slog.Logger) (eventbus.Consumer, error) {
	registry := eventbus.NewConsumerRegistry(logger)
	subscriber := subscribers.NewCacheInvalidationSubscriber(container.Cache, container.Metrics, logger)

	switch cfg.EventBroker {
	case config.BrokerRabbitMQ:
		c, err := eventbus.NewRabbitMQConsumer(eventbus.RabbitMQConsumerConfig{
			URL:    cfg.RabbitMQURL,
			Logger: logger,
		}, registry)
		if err != nil {
			return nil, err
		}
		c.RegisterConsumer(subscriber)
		return c, nil
	case config.BrokerKafka:
		c, err := eventbus.NewKafkaConsumer(eventbus.KafkaConsumerConfig{
			Brokers: cfg.KafkaBrokers,
			GroupID: cfg.KafkaGroupID,
			Topic:   cfg.KafkaTopic,
			Logger:  logger,
		}, registry)
		if err != nil {
			return nil, err
		}
		c.RegisterConsumer(subscriber)
		return c, nil
	default:
		return nil, nil
	}
}

func runEvery(ctx context.Context, interval time.Duration, fn func()) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

func startHealthServer(ctx context.Context, addr string, processor *outbox.Processor, health *observability.HealthRegistry, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		stats := processor.GetStats()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":            "ok",
			"running":           stats.IsRunning,
			"published":         stats.PublishedCount,
			"failed":            stats.FailedCount,
			"dead":              stats.DeadCount,
			"last_processed_at": stats.LastProcessedAt,
			"last_error_at":     stats.LastErrorAt,
			"last_error":        stats.LastError,
		})
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		overall := health.GetOverallHealth(checkCtx)
		w.Header().Set("Content-Type", "application/json")
		if overall.Status == observability.HealthStatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(overall)
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("health server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("health server shutdown error", "error", err)
		}
	}()
}
