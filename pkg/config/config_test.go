package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keelEnvVars = []string{
	"APP_ENV", "LOG_LEVEL", "LOG_FORMAT", "KEEL_USER_ID", "KEEL_USER_ROLE",
	"DATABASE_URL", "DATABASE_DRIVER", "SQLITE_PATH", "DATABASE_MAX_CONNS",
	"REDIS_URL", "CACHE_TTL",
	"EVENT_BROKER", "RABBITMQ_URL", "KAFKA_BROKERS", "KAFKA_TOPIC", "KAFKA_GROUP_ID",
	"OUTBOX_POLL_INTERVAL", "OUTBOX_BATCH_SIZE", "OUTBOX_MAX_RETRIES",
	"OUTBOX_STATS_INTERVAL", "OUTBOX_RETENTION_DAYS", "OUTBOX_CLEANUP_INTERVAL",
	"OUTBOX_PROCESSOR_ENABLED", "WORKER_HEALTH_ADDR",
	"HTTP_ADDR", "HTTP_SHUTDOWN_TIMEOUT", "MCP_ADDR", "MCP_AUTH_TOKEN",
	"KPI_SERVICE_URL", "KPI_SERVICE_TIMEOUT", "KPI_DIRECTORY_FILE",
	"KPI_BREAKER_FAILURES", "KPI_BREAKER_TIMEOUT",
}

// clearEnv blanks every variable Load reads for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range keelEnvVars {
		t.Setenv(v, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "00000000-0000-0000-0000-000000000001", cfg.UserID)
	assert.Equal(t, "supervisor", cfg.UserRole)
	assert.True(t, cfg.LocalMode())
	assert.Equal(t, BrokerInProcess, cfg.EventBroker)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 100, cfg.OutboxBatchSize)
	assert.Equal(t, 24*time.Hour, cfg.OutboxCleanupInterval)
	assert.True(t, cfg.OutboxProcessorEnabled)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTPAddr)
	assert.Equal(t, 5, cfg.KPIBreakerFailures)
	assert.Empty(t, cfg.KPIServiceURL)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://keel@db/keel")
	t.Setenv("EVENT_BROKER", "Kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092, ,k2:9092")
	t.Setenv("OUTBOX_MAX_RETRIES", "9")
	t.Setenv("OUTBOX_POLL_INTERVAL", "2s")
	t.Setenv("OUTBOX_PROCESSOR_ENABLED", "false")
	t.Setenv("KPI_SERVICE_URL", "http://kpi.internal")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.LocalMode())
	assert.Equal(t, BrokerKafka, cfg.EventBroker)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 9, cfg.OutboxMaxRetries)
	assert.Equal(t, 2*time.Second, cfg.OutboxPollInterval)
	assert.False(t, cfg.OutboxProcessorEnabled)
	assert.Equal(t, "http://kpi.internal", cfg.KPIServiceURL)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("OUTBOX_BATCH_SIZE", "lots")
	t.Setenv("CACHE_TTL", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.OutboxBatchSize)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
}

func TestLoad_Validation(t *testing.T) {
	tests := map[string]map[string]string{
		"unknown broker":  {"EVENT_BROKER": "nats"},
		"unknown role":    {"KEEL_USER_ROLE": "owner"},
		"two directories": {"KPI_SERVICE_URL": "http://kpi", "KPI_DIRECTORY_FILE": "kpis.yaml"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
