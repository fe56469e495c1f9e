package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/sahakari/sahakari-cbs/internal/interest"
	"github.com/sahakari/sahakari-cbs/internal/observability"
	"github.com/sahakari/sahakari-cbs/internal/shared"
)

// InterestRunJob drives the interest batch from the queue. A scheduler
// entry or an operator-triggered enqueue ends up here; the engine's
// tenant lock keeps overlapping triggers safe.
type InterestRunJob struct {
	Engine  *interest.Engine
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// NewInterestRunJob wires dependencies for the interest batch handlers.
func NewInterestRunJob(engine *interest.Engine, logger *slog.Logger, metrics *observability.Metrics) *InterestRunJob {
	return &InterestRunJob{Engine: engine, Logger: logger, Metrics: metrics}
}

// HandleCalculate processes interest:calculate tasks.
func (j *InterestRunJob) HandleCalculate(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Engine == nil {
		return errors.New("interest run: handler not configured")
	}
	payload, err := decodeBatchPayload(t)
	if err != nil {
		return err
	}
	result, err := j.Engine.Calculate(ctx, payload.TenantID, shared.BSDate(payload.Date))
	if err != nil {
		// A concurrent batch holding the lock is not a failure; retrying
		// later would recompute the same accruals anyway.
		if errors.Is(err, interest.ErrBatchRunning) {
			j.Metrics.JobRan(TaskInterestCalculate, "skipped")
			return nil
		}
		j.Metrics.JobRan(TaskInterestCalculate, "error")
		j.Logger.Error("interest calculate failed", slog.String("tenant", payload.TenantID), slog.Any("error", err))
		return err
	}
	j.Metrics.JobRan(TaskInterestCalculate, "ok")
	j.Logger.Info("interest calculated",
		slog.String("tenant", payload.TenantID),
		slog.String("date", payload.Date),
		slog.Int("accruals", result.AccrualsWritten),
		slog.Int64("gross", result.TotalGross))
	return nil
}

// HandlePost processes interest:post tasks.
func (j *InterestRunJob) HandlePost(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Engine == nil {
		return errors.New("interest run: handler not configured")
	}
	payload, err := decodeBatchPayload(t)
	if err != nil {
		return err
	}
	result, err := j.Engine.PostAll(ctx, payload.TenantID, shared.BSDate(payload.Date), payload.ActorID)
	if err != nil {
		if errors.Is(err, interest.ErrBatchRunning) {
			j.Metrics.JobRan(TaskInterestPost, "skipped")
			return nil
		}
		j.Metrics.JobRan(TaskInterestPost, "error")
		j.Logger.Error("interest post failed", slog.String("tenant", payload.TenantID), slog.Any("error", err))
		return err
	}
	for range result.Posted {
		j.Metrics.InterestPosted()
	}
	status := "ok"
	if len(result.Failures) > 0 {
		status = "partial"
		for _, f := range result.Failures {
			j.Logger.Warn("interest accrual not posted",
				slog.String("tenant", payload.TenantID),
				slog.Int64("account", f.AccountID),
				slog.String("reason", f.Reason))
		}
	}
	j.Metrics.JobRan(TaskInterestPost, status)
	j.Logger.Info("interest posted",
		slog.String("tenant", payload.TenantID),
		slog.String("date", payload.Date),
		slog.Int("posted", len(result.Posted)),
		slog.Int("skipped", result.Skipped),
		slog.Int("failed", len(result.Failures)))
	return nil
}

func decodeBatchPayload(t *asynq.Task) (InterestBatchPayload, error) {
	var payload InterestBatchPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return InterestBatchPayload{}, asynq.SkipRetry
	}
	if payload.TenantID == "" {
		return InterestBatchPayload{}, asynq.SkipRetry
	}
	if _, err := shared.ParseBSDate(payload.Date); err != nil {
		return InterestBatchPayload{}, asynq.SkipRetry
	}
	return payload, nil
}
