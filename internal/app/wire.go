package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lottodesk/platform/internal/auth"
	"github.com/lottodesk/platform/internal/guard"
	"github.com/lottodesk/platform/internal/handler"
	"github.com/lottodesk/platform/internal/infra"
	"github.com/lottodesk/platform/internal/ledger"
	"github.com/lottodesk/platform/internal/repository"
	"github.com/lottodesk/platform/internal/service"
)

// RouterDeps holds all dependencies needed by NewRouter.
type RouterDeps struct {
	Pool   *pgxpool.Pool
	JWTMgr *auth.JWTManager
	Logger *slog.Logger

	// Hub serves limit board connections on this instance.
	Hub *infra.WSHub
	// Board publishes limit usage. Defaults to Hub; set a RedisBroadcaster
	// to fan out across instances.
	Board infra.Broadcaster
	// SubmitLimiter throttles bill submissions per operator. Nil disables it.
	SubmitLimiter guard.Limiter
	// Metrics is optional; without it /metrics is not mounted.
	Metrics *infra.Metrics

	Location       *time.Location
	AllowedOrigins []string
}

// NewRouter assembles the chi.Router with all routes and middleware.
func NewRouter(deps RouterDeps) chi.Router {
	pool := deps.Pool
	logger := deps.Logger

	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	hub := deps.Hub
	if hub == nil {
		hub = infra.NewWSHub(logger)
	}
	var board infra.Broadcaster = hub
	if deps.Board != nil {
		board = deps.Board
	}
	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	clock := service.SystemClock(loc)

	// Repositories
	operatorRepo := repository.NewPgOperatorRepository()
	rateRepo := repository.NewRateRepository()
	closedRepo := repository.NewClosedNumberRepository()
	limitRepo := repository.NewLimitNumberRepository()
	ruleRepo := repository.NewRuleRepository(closedRepo, limitRepo)
	billRepo := repository.NewBillRepository()
	outboxRepo := repository.NewOutboxRepository()
	attemptRepo := repository.NewLoginAttemptRepository()

	// Ledger engine
	ledgerEngine := ledger.NewEngine(closedRepo, limitRepo, billRepo, outboxRepo, logger)

	// Guards
	lockout := guard.NewLockout(pool, attemptRepo, logger)

	// Services
	authSvc := service.NewAuthService(pool, operatorRepo, rateRepo, outboxRepo, lockout, deps.JWTMgr, logger)
	ruleSvc := service.NewRuleService(pool, closedRepo, limitRepo, ruleRepo, clock, logger)
	rateSvc := service.NewRateService(pool, rateRepo)
	billSvc := service.NewBillService(pool, ledgerEngine, billRepo, deps.SubmitLimiter, board, deps.Metrics, clock, logger)

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc, logger)
	ruleHandler := handler.NewRuleHandler(ruleSvc, logger)
	rateHandler := handler.NewRateHandler(rateSvc, logger)
	billHandler := handler.NewBillHandler(billSvc, loc, logger)
	boardHandler := handler.NewLimitBoardHandler(hub, origins, logger)

	// Router
	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(logger))
	if deps.Metrics != nil {
		r.Use(handler.Metrics(deps.Metrics))
	}
	r.Use(handler.CORSWithOrigins(origins...))

	// Health and metrics (no auth)
	r.Get("/health", handler.HealthHandler(pool))
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	// Limit board: the token may come as ?token= since browsers cannot set
	// headers on websocket upgrades.
	r.With(auth.Authenticate(deps.JWTMgr)).Get("/ws/limits", boardHandler.Serve)

	r.Group(func(r chi.Router) {
		r.Use(handler.JSONContentType)

		// Auth routes (no auth)
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/validate-token", authHandler.ValidateToken)
		})

		// Operator-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate(deps.JWTMgr))

			r.Get("/operators/me", authHandler.Me)

			r.Route("/close-numbers", func(r chi.Router) {
				r.Get("/", ruleHandler.ListClosed)
				r.Post("/", ruleHandler.AddClosed)
				r.Delete("/{id}", ruleHandler.RemoveClosed)
			})

			r.Route("/limit-numbers", func(r chi.Router) {
				r.Get("/", ruleHandler.ListLimits)
				r.Post("/", ruleHandler.AddLimit)
				r.Patch("/{id}", ruleHandler.UpdateLimitAmount)
				r.Delete("/{id}", ruleHandler.RemoveLimit)
			})

			r.Route("/rates", func(r chi.Router) {
				r.Get("/", rateHandler.List)
				r.Patch("/{id}", rateHandler.UpdatePrice)
			})

			r.Route("/bills", func(r chi.Router) {
				r.Get("/", billHandler.List)
				r.Post("/", billHandler.Submit)
				r.Post("/preview", billHandler.Preview)
			})
		})
	})

	return r
}
