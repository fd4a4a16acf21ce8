package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/messdesk/messdesk/internal/app"
	"github.com/messdesk/messdesk/internal/audit"
	"github.com/messdesk/messdesk/internal/auth"
	"github.com/messdesk/messdesk/internal/authz"
	"github.com/messdesk/messdesk/internal/entitlement"
	"github.com/messdesk/messdesk/internal/meals"
	"github.com/messdesk/messdesk/internal/observability"
	"github.com/messdesk/messdesk/internal/platform/cache"
	"github.com/messdesk/messdesk/internal/shared"
	"github.com/messdesk/messdesk/internal/subscription"
	"github.com/messdesk/messdesk/internal/tenant"
	"github.com/messdesk/messdesk/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("init redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "messdesk_session", cfg.SessionTTL, cfg.IsProduction())
	auditLogger := shared.NewAuditLogger(pool)
	metrics := observability.NewMetrics()

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo, logger)
	authHandler := auth.NewHandler(logger, authService, sessionManager)

	authzRepo := authz.NewRepository(pool)
	authzService := authz.NewService(authzRepo)
	evaluator := authz.NewEvaluator(authzRepo, auditLogger, logger)

	entRepo := entitlement.NewRepository(pool)
	entCache := entitlement.NewCache(redisClient, cfg.SnapshotTTL)
	notifier := jobs.NewQuotaNotifier(jobsClient, logger)
	engine := entitlement.NewEngine(entRepo, logger,
		entitlement.WithCache(entCache),
		entitlement.WithNotifier(notifier))

	subRepo := subscription.NewRepository(pool)
	subService := subscription.NewService(subRepo, entCache, auditLogger, logger)

	tenantRepo := tenant.NewRepository(pool)
	tenantService := tenant.NewService(tenantRepo, authzService, subService, auditLogger, logger)
	scopeMW := tenant.Middleware{Service: tenantService, Logger: logger}

	// The tenant scope satisfies both the authz and entitlement scope views.
	// A typed-nil pointer must come out as an untyped nil interface here.
	authzScope := authz.ScopeFunc(func(ctx context.Context) authz.Scope {
		if s := tenant.ScopeFromContext(ctx); s != nil {
			return s
		}
		return nil
	})
	entScope := entitlement.ScopeFunc(func(ctx context.Context) entitlement.Scope {
		if s := tenant.ScopeFromContext(ctx); s != nil {
			return s
		}
		return nil
	})

	authzMW := authz.Middleware{Evaluator: evaluator, Scope: authzScope, Logger: logger, Denials: metrics}
	entMW := entitlement.Middleware{Engine: engine, Scope: entScope, Logger: logger, Counter: metrics}

	tenantHandler := tenant.NewHandler(logger, tenantService, engine, authzMW, scopeMW)
	authzHandler := authz.NewHandler(logger, authzService, authzScope)
	featureHandler := entitlement.NewHandler(logger, engine, entScope)
	subscriptionHandler := subscription.NewHandler(logger, subService, authzMW)

	mealRepo := meals.NewRepository(pool)
	mealService := meals.NewService(mealRepo, logger)
	mealHandler := meals.NewHandler(logger, mealService, evaluator, authzMW, entMW)

	auditService := audit.NewService(audit.NewRepository(pool))
	auditHandler := audit.NewHandler(logger, auditService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		SessionManager:      sessionManager,
		AuthHandler:         authHandler,
		TenantHandler:       tenantHandler,
		AuthzHandler:        authzHandler,
		FeatureHandler:      featureHandler,
		SubscriptionHandler: subscriptionHandler,
		MealHandler:         mealHandler,
		AuditHandler:        auditHandler,
		JobHandler:          jobHandler,
		ScopeMiddleware:     scopeMW,
		AuthzMiddleware:     authzMW,
		Metrics:             metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.Any("error", err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server run", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
