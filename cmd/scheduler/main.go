package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/drewmudry/chatshorts-api/config"
	"github.com/drewmudry/chatshorts-api/internal/platform"
	"github.com/drewmudry/chatshorts-api/logging"
	"github.com/drewmudry/chatshorts-api/renders"
	"github.com/drewmudry/chatshorts-api/tasks"
	"github.com/drewmudry/chatshorts-api/worker"
	"github.com/robfig/cron/v3"
)

// The scheduler keeps cron state in process, so run a single instance.
func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New(logging.Config{Service: "scheduler"})
		boot.Fatal().Err(err).Msg("failed to load config")
	}
	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "scheduler"})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := platform.NewDBConnection(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	rdb, err := platform.NewRedisClient(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer rdb.Close()

	janitor := worker.NewJanitor(
		renders.NewGormStore(db),
		tasks.NewRedisQueue(rdb),
		cfg.Worker.StuckAfter,
		cfg.Worker.Retention,
		logger,
	)

	c := cron.New()
	if _, err := c.AddFunc("@every 10m", func() {
		if _, err := janitor.RequeueStuck(ctx); err != nil {
			logger.Error().Err(err).Msg("requeue of stuck renders failed")
		}
	}); err != nil {
		logger.Fatal().Err(err).Msg("failed to schedule requeue job")
	}
	if _, err := c.AddFunc("@hourly", func() {
		if _, err := janitor.Sweep(ctx); err != nil {
			logger.Error().Err(err).Msg("retention sweep failed")
		}
	}); err != nil {
		logger.Fatal().Err(err).Msg("failed to schedule retention job")
	}

	c.Start()
	logger.Info().Dur("stuck_after", cfg.Worker.StuckAfter).Dur("retention", cfg.Worker.Retention).Msg("scheduler started")

	<-ctx.Done()
	<-c.Stop().Done()
	logger.Info().Msg("scheduler stopped")
}
