package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DSN              string
	JWTSecret        string
	AppPort          string
	JWTTTL           time.Duration
	RateRPS          float64
	RateBurst        int
	HeartbeatTimeout time.Duration
	SweepInterval    time.Duration
	SeedDemo         bool
}

// Load reads configuration from the environment, optionally preloading a
// .env file in development. Only the database DSN is mandatory.
func Load() (Config, error) {
	// Missing .env is fine; system environment wins either way.
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}

	cfg := Config{
		DSN:              os.Getenv("DATABASE_DSN"),
		JWTSecret:        getEnv("JWT_SECRET", "dev-secret-only"),
		AppPort:          getEnv("APP_PORT", "8080"),
		JWTTTL:           time.Duration(getEnvInt("JWT_TTL_MINUTES", 24*60)) * time.Minute,
		RateRPS:          float64(getEnvInt("RATE_RPS", 20)),
		RateBurst:        getEnvInt("RATE_BURST", 40),
		HeartbeatTimeout: time.Duration(getEnvInt("HEARTBEAT_TIMEOUT_SECONDS", 90)) * time.Second,
		SweepInterval:    time.Duration(getEnvInt("SWEEP_INTERVAL_SECONDS", 30)) * time.Second,
		SeedDemo:         getEnv("SEED_DEMO", "false") == "true",
	}

	if cfg.DSN == "" {
		return Config{}, ErrMissingDSN
	}
	return cfg, nil
}

var ErrMissingDSN = errMissingDSN{}

type errMissingDSN struct{}

func (errMissingDSN) Error() string { return "DATABASE_DSN not set in environment" }

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
