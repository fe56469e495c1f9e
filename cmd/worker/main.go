package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/sahakari/sahakari-cbs/internal/app"
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
		slog.Default().Info("test mode detected, skipping worker startup")
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
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

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
	auditLogger := shared.NewAuditLogger(pool, logger)

	ledgerRepo := ledger.NewRepository(pool)
	balanceCache := ledger.NewBalanceCache(redisClient, cfg.BalanceCacheTTL)
	poster := ledger.NewPoster(ledgerRepo, balanceCache, auditLogger, metrics)

	interestRepo := interest.NewRepository(pool)
	interestEngine := interest.NewEngine(interestRepo, ledgerRepo, poster, redisClient, interest.Config{
		DayCountDivisor: cfg.InterestDayCount,
		Concurrency:     cfg.InterestConcurrency,
		LockTTL:         cfg.InterestLockTTL,
	})

	interestJob := jobs.NewInterestRunJob(interestEngine, logger, metrics)
	integrityJob := jobs.NewLedgerIntegrityJob(pool, logger, metrics)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskInterestCalculate, Handler: interestJob.HandleCalculate},
			{Type: jobs.TaskInterestPost, Handler: interestJob.HandlePost},
			{Type: jobs.TaskLedgerIntegrity, Handler: integrityJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "30 2 * * *", Task: jobs.NewLedgerIntegrityTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
