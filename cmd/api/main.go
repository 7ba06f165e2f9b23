package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"universo_lite/internal/config"
	"universo_lite/internal/connector"
	"universo_lite/internal/db"
	"universo_lite/internal/events"
	httpserver "universo_lite/internal/http"
	"universo_lite/internal/seed"
)

func main() {
	logCfg := zap.NewProductionConfig()
	logger, err := logCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	gdb, err := db.Connect(cfg.DSN)
	if err != nil {
		logger.Fatal("database connect", zap.Error(err))
	}
	defer db.Close(gdb)

	if err := db.AutoMigrate(gdb); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	if cfg.SeedDemo {
		if err := seed.FirstSetup(gdb, logger); err != nil {
			logger.Fatal("seed", zap.Error(err))
		}
	}

	hub := events.NewHub()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go connector.RunSweeper(ctx, gdb, hub, cfg.SweepInterval, cfg.HeartbeatTimeout, logger)

	r := httpserver.NewRouter(gdb, cfg, hub, logger)
	logger.Info("server listening", zap.String("port", cfg.AppPort))
	if err := r.Run(fmt.Sprintf(":%s", cfg.AppPort)); err != nil {
		logger.Fatal("server", zap.Error(err))
	}
}
