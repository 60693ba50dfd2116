//go:build integration

// Package testutil boots the API against a disposable PostgreSQL for
// integration tests. Set TEST_DATABASE_URL to reuse an existing database
// instead of starting a container.
package testutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lottodesk/platform/internal/app"
	"github.com/lottodesk/platform/internal/auth"
	"github.com/lottodesk/platform/internal/infra"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

const (
	TestJWTSecret = "integration-test-secret"
	TestDBImage   = "postgres:16-alpine"
	TestDBName    = "lotto_test"
	TestDBUser    = "lotto"
	TestDBPass    = "lotto"
)

// TestEnv holds all resources for an integration test.
type TestEnv struct {
	Server  *httptest.Server
	Pool    *pgxpool.Pool
	JWTMgr  *auth.JWTManager
	Hub     *infra.WSHub
	Metrics *infra.Metrics
	t       *testing.T
}

var (
	sharedPool *pgxpool.Pool
	poolOnce   sync.Once
	poolErr    error
)

// startPostgres returns a DSN for a migrated database, starting a container
// unless TEST_DATABASE_URL is set. The container lives until the test binary
// exits and is reaped by testcontainers.
func startPostgres(ctx context.Context) (string, error) {
	if dsn := os.Getenv("TEST_DATABASE_URL"); dsn != "" {
		return dsn, nil
	}

	ctr, err := postgres.Run(ctx, TestDBImage,
		postgres.WithDatabase(TestDBName),
		postgres.WithUsername(TestDBUser),
		postgres.WithPassword(TestDBPass),
		testcontainers.WithEnv(map[string]string{"TZ": "UTC"}),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return "", fmt.Errorf("start postgres container: %w", err)
	}

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return "", fmt.Errorf("container dsn: %w", err)
	}
	return dsn, nil
}

func getSharedPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	poolOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		dsn, err := startPostgres(ctx)
		if err != nil {
			poolErr = err
			return
		}

		quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
		if err := infra.RunMigrations(dsn, quiet); err != nil {
			poolErr = fmt.Errorf("run migrations: %w", err)
			return
		}

		sharedPool, err = infra.NewPostgresPoolFromDSN(ctx, dsn, 20, 1)
		if err != nil {
			poolErr = fmt.Errorf("create pool: %w", err)
		}
	})

	if poolErr != nil {
		t.Fatalf("failed to initialize test pool: %v", poolErr)
	}
	return sharedPool
}

// NewTestEnv creates a test environment with an httptest.Server backed by the
// real router and a clean database.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	pool := getSharedPool(t)

	jwtMgr := auth.NewJWTManager(TestJWTSecret, time.Hour)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	hub := infra.NewWSHub(logger)
	metrics := infra.NewMetrics()

	router := app.NewRouter(app.RouterDeps{
		Pool:     pool,
		JWTMgr:   jwtMgr,
		Logger:   logger,
		Hub:      hub,
		Metrics:  metrics,
		Location: time.FixedZone("ICT", 7*60*60),
	})

	server := httptest.NewServer(router)

	env := &TestEnv{
		Server:  server,
		Pool:    pool,
		JWTMgr:  jwtMgr,
		Hub:     hub,
		Metrics: metrics,
		t:       t,
	}

	t.Cleanup(func() {
		hub.Shutdown(context.Background())
		server.Close()
		env.CleanAll()
	})

	// Clean before test to ensure isolation
	env.CleanAll()

	return env
}
