package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("SLA_BREACH_SWEEP_INTERVAL", "")
	t.Setenv("DESKWATCH_REFRESH_INTERVAL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Equal(t, 30*time.Second, cfg.App.RequestTimeout())
	assert.Empty(t, cfg.Redis.Addr)
	assert.Nil(t, cfg.Notification.KafkaBrokers)
	assert.Equal(t, "ticket-events", cfg.Notification.KafkaTopic)
	assert.Equal(t, 30*time.Second, cfg.SLA.BreachSweepInterval)
	assert.Equal(t, 15*time.Second, cfg.Client.RefreshInterval)
	assert.Equal(t, time.Hour, cfg.Auth.AccessTokenTTL())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,,")
	t.Setenv("SLA_BREACH_SWEEP_INTERVAL", "5s")
	t.Setenv("DESKWATCH_REFRESH_INTERVAL", "not-a-duration")
	t.Setenv("HTTP_REQUEST_TIMEOUT_SECONDS", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9090", cfg.App.Addr())
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Notification.KafkaBrokers)
	assert.Equal(t, 5*time.Second, cfg.SLA.BreachSweepInterval)
	assert.Equal(t, 15*time.Second, cfg.Client.RefreshInterval, "invalid durations fall back")
	assert.Zero(t, cfg.App.RequestTimeout())
}

func TestLoad_InvalidRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "x")
	_, err := Load()
	assert.Error(t, err)
}
