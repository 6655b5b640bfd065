package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "0.0.0.0", cfg.ServerHost)
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, 25, cfg.DBMaxOpenConnections)
	assert.Equal(t, 5*time.Minute, cfg.DBConnMaxLifetime)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 0.25, cfg.KeyMinDistinctByteRatio)
	assert.Equal(t, 500, cfg.RotationBatchSize)
	assert.Equal(t, 4, cfg.RotationWorkers)
	assert.Equal(t, 60*time.Second, cfg.RotationLeaseTTL)
	assert.False(t, cfg.RotationAbortOnRowFailure)
	assert.Equal(t, "phivault", cfg.MetricsNamespace)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("ROTATION_BATCH_SIZE", "100")
	t.Setenv("ROTATION_ABORT_ON_ROW_FAILURE", "true")
	t.Setenv("KEY_MIN_DISTINCT_BYTE_RATIO", "0.5")

	cfg := Load()

	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, 100, cfg.RotationBatchSize)
	assert.True(t, cfg.RotationAbortOnRowFailure)
	assert.Equal(t, 0.5, cfg.KeyMinDistinctByteRatio)
}

func TestGetGinMode(t *testing.T) {
	cfg := &Config{LogLevel: "debug"}
	assert.Equal(t, "debug", cfg.GetGinMode())

	cfg.LogLevel = "info"
	assert.Equal(t, "release", cfg.GetGinMode())
}
