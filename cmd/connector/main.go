package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"universo_lite/internal/connector"
)

// The connector is a standalone process run on an external node. It
// registers the node as a resource using a one-time token minted by a
// cluster admin and then heartbeats until stopped.
func main() {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}

	logger, err := zap.NewProductionConfig().Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg := connector.Config{
		BaseURL:  getEnv("CONNECTOR_API_URL", "http://localhost:8080"),
		Token:    os.Getenv("CONNECTOR_TOKEN"),
		Name:     getEnv("CONNECTOR_NAME", hostname()),
		Type:     getEnv("CONNECTOR_TYPE", "node"),
		Interval: time.Duration(getEnvInt("CONNECTOR_INTERVAL_SECONDS", 30)) * time.Second,
	}
	if cfg.Token == "" {
		logger.Fatal("CONNECTOR_TOKEN not set in environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := connector.NewClient(cfg, logger)
	if err := client.Run(ctx); err != nil && err != context.Canceled {
		logger.Fatal("connector", zap.Error(err))
	}
}

func hostname() string {
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return "connector"
}

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
