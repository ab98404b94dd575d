package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/eternity-backoffice-go/internal/config"
	"github.com/boddenberg/eternity-backoffice-go/internal/handler"
	"github.com/boddenberg/eternity-backoffice-go/internal/infra/observability"
	"github.com/boddenberg/eternity-backoffice-go/internal/infra/resilience"
	"github.com/boddenberg/eternity-backoffice-go/internal/infra/sqlstore"
	"github.com/boddenberg/eternity-backoffice-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("db_driver", cfg.DBDriver),
		zap.Bool("auto_migrate", cfg.AutoMigrate),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Duration("max_backoff", cfg.MaxBackoff),
		zap.Int("max_concurrency", cfg.MaxConcurrency),
		zap.Duration("queue_timeout", cfg.QueueTimeout),
		zap.Duration("jwt_access_ttl", cfg.JWTAccessTTL),
		zap.Bool("dev_auth", cfg.DevAuth),
	)
	if cfg.DevAuth {
		logger.Warn("DEV_AUTH enabled: POST /v1/dev/token issues tokens without a password")
	}

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "eternity-backoffice")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
		QueueTimeout:   cfg.QueueTimeout,
	}
	cb := resilience.NewCircuitBreaker("database", resilience.LogStateChanges(logger), metrics.ObserveBreaker)
	bulkhead := resilience.NewBulkhead(resilienceCfg.MaxConcurrency, resilienceCfg.QueueTimeout)
	metrics.TrackInFlight(bulkhead.InUse)

	// --- Database ---
	startCtx, cancelStart := context.WithTimeout(context.Background(), time.Minute)
	conn, err := sqlstore.Open(startCtx, sqlstore.Options{
		Driver:       cfg.DBDriver,
		DSN:          cfg.DatabaseURL,
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
	}, resilienceCfg, logger)
	cancelStart()
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer conn.Close()

	if cfg.AutoMigrate {
		if err := sqlstore.RunMigrations(conn, cfg.DBDriver); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
		logger.Info("migrations applied", zap.String("dialect", cfg.DBDriver))
	}

	db := sqlstore.New(conn, cfg.DBDriver, cb, logger)
	clientStore := sqlstore.NewClientStore(db)
	familyStore := sqlstore.NewFamilyStore(db)
	representativeStore := sqlstore.NewRepresentativeStore(db)

	// --- Services ---
	familySvc := service.NewFamilyService(clientStore, familyStore, metrics, logger)
	clientSvc := service.NewClientService(clientStore, metrics, logger)
	authSvc := service.NewAuthService(representativeStore, cfg.JWTSecret, cfg.JWTAccessTTL, logger)
	repSvc := service.NewRepresentativeService(representativeStore, metrics, logger)

	// --- Router ---
	router := handler.NewRouter(handler.Dependencies{
		Family:   familySvc,
		Clients:  clientSvc,
		Auth:     authSvc,
		Reps:     repSvc,
		DB:       db,
		Metrics:  metrics,
		Bulkhead: bulkhead,
		DevAuth:  cfg.DevAuth,
	}, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
