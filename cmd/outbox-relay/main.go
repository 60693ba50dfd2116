package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lottodesk/platform/internal/infra"
	"github.com/lottodesk/platform/internal/relay"
	"github.com/lottodesk/platform/internal/repository"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("outbox relay failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.OutboxBatchSize <= 0 {
		return fmt.Errorf("OUTBOX_BATCH_SIZE must be positive")
	}

	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	logger.Info("outbox relay connected to postgres")

	producer := infra.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaEnabled, logger)
	defer producer.Close()
	if !producer.Enabled() {
		logger.Warn("kafka disabled, events will be marked published without being sent")
	}

	metrics := infra.NewMetrics()
	metricsSrv := infra.StartMetricsServer(cfg.RelayMetricsPort, metrics, func(ctx context.Context) error {
		return infra.HealthCheck(ctx, pool)
	})

	poller := relay.NewOutboxPoller(pool, repository.NewOutboxRepository(), producer, metrics, logger, relay.Options{
		Interval:    cfg.OutboxPollInterval,
		BatchSize:   cfg.OutboxBatchSize,
		TopicPrefix: cfg.KafkaTopicPrefix,
	})
	poller.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
		logger.Warn("metrics server shutdown", "error", err)
	}

	logger.Info("outbox relay stopped")
	return nil
}
