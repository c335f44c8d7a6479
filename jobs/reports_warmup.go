package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ledgerline/ledgerline/internal/reports"
)

// ReportsWarmupJob pre-populates the report cache so dashboards stay
// warm after mutations invalidate it.
type ReportsWarmupJob struct {
	Reports *reports.Service
	Logger  *slog.Logger
}

// NewReportsWarmupJob wires dependencies for the warmup handler.
func NewReportsWarmupJob(svc *reports.Service, logger *slog.Logger) *ReportsWarmupJob {
	return &ReportsWarmupJob{Reports: svc, Logger: logger}
}

// Handle processes reports warmup tasks.
func (j *ReportsWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Reports == nil {
		return errors.New("reports warmup: handler not configured")
	}
	var payload ReportsWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	logger := j.logger()
	started := time.Now()
	logger.Info("starting reports warmup")

	targets := []int64{payload.BusinessID}
	if payload.BusinessID == 0 {
		ids, err := j.Reports.BusinessIDs(ctx)
		if err != nil {
			logger.Error("load warmup targets", slog.Any("error", err))
			return err
		}
		targets = ids
	}

	for _, businessID := range targets {
		// Bound each business so one slow tenant cannot stall the run.
		warmCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
		err := j.Reports.Warmup(warmCtx, businessID)
		cancel()
		if err != nil {
			logger.Error("warm business", slog.Int64("business_id", businessID), slog.Any("error", err))
			return err
		}
	}

	logger.Info("completed reports warmup",
		slog.Int("businesses", len(targets)),
		slog.Duration("duration", time.Since(started)),
	)
	return nil
}

func (j *ReportsWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReportsWarmup))
	}
	return slog.Default().With(slog.String("job", TaskReportsWarmup))
}
