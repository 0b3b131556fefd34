package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/garuda-dms/garuda-dms/internal/adjustment"
	"github.com/garuda-dms/garuda-dms/internal/app"
	"github.com/garuda-dms/garuda-dms/internal/closure"
	"github.com/garuda-dms/garuda-dms/internal/ledger"
	"github.com/garuda-dms/garuda-dms/internal/masterdata/companies"
	"github.com/garuda-dms/garuda-dms/internal/observability"
	"github.com/garuda-dms/garuda-dms/internal/platform/cache"
	"github.com/garuda-dms/garuda-dms/internal/platform/db"
	"github.com/garuda-dms/garuda-dms/internal/shared"
	"github.com/garuda-dms/garuda-dms/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, closure lookups fall back to postgres", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)
	approvalRecorder := shared.NewApprovalRecorder(pool, logger)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	closureRepo := closure.NewRepository(pool)
	closureRegistry := closure.NewRegistry(closureRepo, redisClient, logger)
	closureHandler := closure.NewHandler(logger, closureRegistry)

	companiesRepo := companies.NewRepository(pool)
	companiesService := companies.NewService(companiesRepo)
	companiesHandler := companies.NewHandler(logger, companiesService)

	ledgerStore := ledger.NewStore(pool)
	ledgerHandler := ledger.NewHandler(logger, ledgerStore)

	adjustmentRepo := adjustment.NewRepository(pool)
	postingEngine := adjustment.NewEngine(pool, logger, metrics)
	adjustmentService := adjustment.NewService(adjustmentRepo, postingEngine, closureRegistry,
		companiesService, approvalRecorder, auditLogger, logger)
	adjustmentHandler := adjustment.NewHandler(logger, adjustmentService, idempotencyStore)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		ClosureHandler:    closureHandler,
		CompaniesHandler:  companiesHandler,
		LedgerHandler:     ledgerHandler,
		AdjustmentHandler: adjustmentHandler,
		JobHandler:        jobHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
