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

	"github.com/lottodesk/platform/internal/app"
	"github.com/lottodesk/platform/internal/auth"
	"github.com/lottodesk/platform/internal/guard"
	"github.com/lottodesk/platform/internal/infra"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load config
	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	loc, err := cfg.PeriodLocation()
	if err != nil {
		return err
	}

	if cfg.AutoMigrate {
		if err := infra.RunMigrations(cfg.DSN(), logger); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	// Connect to Postgres
	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	logger.Info("connected to postgres")

	jwtMgr := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTOperatorExpiry)
	hub := infra.NewWSHub(logger)
	metrics := infra.NewMetrics()

	deps := app.RouterDeps{
		Pool:           pool,
		JWTMgr:         jwtMgr,
		Logger:         logger,
		Hub:            hub,
		Metrics:        metrics,
		Location:       loc,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	}

	// Redis fans the limit board out across instances and shares the submit
	// rate limit. Without it both stay in-process.
	if cfg.RedisEnabled {
		rdb, err := infra.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rdb.Close()
		logger.Info("connected to redis")

		infra.RunRedisSubscriber(ctx, rdb, infra.LimitBoardChannel, hub, logger)
		deps.Board = infra.NewRedisBroadcaster(rdb, infra.LimitBoardChannel)
		deps.SubmitLimiter = guard.NewRedisRateLimiter(rdb, "lotto:ratelimit:", cfg.SubmitRateLimit, cfg.SubmitRateWindow)
	} else {
		limiter := guard.NewRateLimiter(cfg.SubmitRateLimit, cfg.SubmitRateWindow)
		deps.SubmitLimiter = limiter
		go sweep(ctx, limiter, cfg.SubmitRateWindow)
	}

	r := app.NewRouter(deps)

	// Start server
	addr := fmt.Sprintf(":%d", cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "addr", addr, "period_timezone", loc.String())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	// Shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hub.Shutdown(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}

// sweep drops idle rate limiter windows once per window.
func sweep(ctx context.Context, limiter *guard.RateLimiter, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Sweep()
		}
	}
}
