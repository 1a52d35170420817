package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2022, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "feed", cfg.Database.DBName)
	assert.Equal(t, 10*time.Minute, cfg.Redis.CountTTL)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "dbserver1.public.likes", cfg.Kafka.Topic)
	assert.Equal(t, 60*time.Second, cfg.Reconciler.Interval)
	assert.Equal(t, 100, cfg.Reconciler.TopN)
	assert.Equal(t, 8, cfg.Reconciler.Concurrency)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_FILE_PATH", "/tmp/feed.db")
	t.Setenv("REDIS_COUNT_TTL", "30s")
	t.Setenv("KAFKA_BROKERS", "kafka:9092")
	t.Setenv("RECONCILER_INTERVAL", "5s")
	t.Setenv("RECONCILER_CONCURRENCY", "2")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/tmp/feed.db", cfg.Database.FilePath)
	assert.Equal(t, 30*time.Second, cfg.Redis.CountTTL)
	assert.Equal(t, "kafka:9092", cfg.Kafka.Brokers)
	assert.Equal(t, 5*time.Second, cfg.Reconciler.Interval)
	assert.Equal(t, 2, cfg.Reconciler.Concurrency)
	assert.Equal(t, "debug", cfg.Log.Level)
}
