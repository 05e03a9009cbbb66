package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/drewmudry/chatshorts-api/config"
	"github.com/drewmudry/chatshorts-api/internal/platform"
	"github.com/drewmudry/chatshorts-api/logging"
	"github.com/drewmudry/chatshorts-api/notify"
	"github.com/drewmudry/chatshorts-api/renders"
	"github.com/drewmudry/chatshorts-api/tasks"
	"github.com/drewmudry/chatshorts-api/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New(logging.Config{Service: "worker"})
		boot.Fatal().Err(err).Msg("failed to load config")
	}
	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "worker"})

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

	services, err := platform.NewServices(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build pipeline")
	}

	proc := worker.NewProcessor(
		renders.NewGormStore(db),
		tasks.NewRedisQueue(rdb),
		services.Pipeline,
		notify.NewDiscord(cfg.DiscordWebhookURL, "", logger),
		logger,
	)
	proc.Timeout = cfg.Worker.CompositionTimeout

	metricsSrv := &http.Server{Addr: cfg.Worker.MetricsAddr, Handler: promhttp.Handler()}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", cfg.Worker.MetricsAddr).Msg("metrics listening")
		if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		logger.Info().Int("concurrency", cfg.Worker.Concurrency).Msg("worker started, waiting for queue tasks")
		return proc.Run(ctx, cfg.Worker.Concurrency)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("worker stopped")
	}
	logger.Info().Msg("worker stopped")
}
