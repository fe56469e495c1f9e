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

	"github.com/sahakari/sahakari-cbs/internal/app"
	"github.com/sahakari/sahakari-cbs/internal/coa"
	"github.com/sahakari/sahakari-cbs/internal/daybook"
	"github.com/sahakari/sahakari-cbs/internal/interest"
	"github.com/sahakari/sahakari-cbs/internal/ledger"
	"github.com/sahakari/sahakari-cbs/internal/observability"
	"github.com/sahakari/sahakari-cbs/internal/platform/cache"
	"github.com/sahakari/sahakari-cbs/internal/platform/db"
	"github.com/sahakari/sahakari-cbs/internal/shared"
	"github.com/sahakari/sahakari-cbs/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(dbpool, logger)

	accountsRepo := coa.NewRepository(dbpool)
	accountsService := coa.NewService(accountsRepo, auditLogger)
	accountsHandler := coa.NewHandler(logger, accountsService)

	ledgerRepo := ledger.NewRepository(dbpool)
	balanceCache := ledger.NewBalanceCache(redisClient, cfg.BalanceCacheTTL)
	poster := ledger.NewPoster(ledgerRepo, balanceCache, auditLogger, metrics)
	balanceService := ledger.NewBalanceService(ledgerRepo, accountsService, balanceCache)
	ledgerHandler := ledger.NewHandler(logger, poster, balanceService)

	daybookRepo := daybook.NewRepository(dbpool)
	reportCache := daybook.NewReportCache(redisClient, cfg.ReportCacheTTL)
	daybookService := daybook.NewService(daybookRepo, reportCache, auditLogger)
	daybookHandler := daybook.NewHandler(logger, daybookService)

	interestRepo := interest.NewRepository(dbpool)
	interestEngine := interest.NewEngine(interestRepo, ledgerRepo, poster, redisClient, interest.Config{
		DayCountDivisor: cfg.InterestDayCount,
		Concurrency:     cfg.InterestConcurrency,
		LockTTL:         cfg.InterestLockTTL,
	})
	interestHandler := interest.NewHandler(logger, interestEngine)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		AccountsHandler: accountsHandler,
		DayBookHandler:  daybookHandler,
		LedgerHandler:   ledgerHandler,
		InterestHandler: interestHandler,
		JobHandler:      jobHandler,
		Metrics:         metrics,
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
