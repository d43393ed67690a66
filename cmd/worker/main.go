package main

import (
	"context"
	"os/signal"
	"syscall"

	"madrasa/internal/app"
	"madrasa/internal/logger"
	"madrasa/internal/school"
	"madrasa/internal/worker"
)

// Worker consumes attendance.saved events and rebuilds the cached reports.
func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("config")
	}
	if cfg.QueueBackend != "redis" {
		logger.Fatal().Str("queue_backend", cfg.QueueBackend).Msg("worker needs the redis queue; the api warms reports itself otherwise")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := app.OpenStores(ctx, cfg, false)
	if err != nil {
		logger.Fatal().Err(err).Msg("store connect failed")
	}
	defer stores.Close()

	back := app.OpenBackplane(ctx, cfg)
	defer back.Close()
	if back.Redis == nil {
		logger.Fatal().Str("addr", cfg.RedisAddr).Msg("redis not reachable")
	}

	w := worker.NewWarmer(stores.Engine(cfg), school.NewService(stores.School), back.Reports)
	if err := w.Run(ctx, back.Queue); err != nil {
		logger.Fatal().Err(err).Msg("queue consume init failed")
	}
	logger.Info().Msg("shutdown complete")
}
