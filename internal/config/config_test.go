package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_DSN", "postgres://localhost/universo_test")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("APP_PORT", "")
	t.Setenv("JWT_TTL_MINUTES", "")
	t.Setenv("RATE_RPS", "")
	t.Setenv("RATE_BURST", "")
	t.Setenv("HEARTBEAT_TIMEOUT_SECONDS", "")
	t.Setenv("SWEEP_INTERVAL_SECONDS", "")
	t.Setenv("SEED_DEMO", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/universo_test", cfg.DSN)
	assert.Equal(t, "dev-secret-only", cfg.JWTSecret)
	assert.Equal(t, "8080", cfg.AppPort)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, 20.0, cfg.RateRPS)
	assert.Equal(t, 40, cfg.RateBurst)
	assert.Equal(t, 90*time.Second, cfg.HeartbeatTimeout)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
	assert.False(t, cfg.SeedDemo)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_DSN", "postgres://localhost/universo_test")
	t.Setenv("JWT_SECRET", "real-secret")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("JWT_TTL_MINUTES", "15")
	t.Setenv("RATE_RPS", "5")
	t.Setenv("RATE_BURST", "10")
	t.Setenv("HEARTBEAT_TIMEOUT_SECONDS", "120")
	t.Setenv("SEED_DEMO", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "real-secret", cfg.JWTSecret)
	assert.Equal(t, "9090", cfg.AppPort)
	assert.Equal(t, 15*time.Minute, cfg.JWTTTL)
	assert.Equal(t, 5.0, cfg.RateRPS)
	assert.Equal(t, 10, cfg.RateBurst)
	assert.Equal(t, 2*time.Minute, cfg.HeartbeatTimeout)
	assert.True(t, cfg.SeedDemo)
}

func TestLoadRequiresDSN(t *testing.T) {
	t.Setenv("DATABASE_DSN", "")

	_, err := Load()
	assert.ErrorIs(t, err, ErrMissingDSN)
}

func TestGetEnvIntIgnoresGarbage(t *testing.T) {
	t.Setenv("RATE_BURST", "not-a-number")
	assert.Equal(t, 40, getEnvInt("RATE_BURST", 40))
}
