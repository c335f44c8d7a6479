package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
)

// Bumper invalidates the report cache version.
type Bumper interface {
	Bump(ctx context.Context) error
}

// WarmupEnqueuer submits warmup tasks to the queue.
type WarmupEnqueuer interface {
	EnqueueReportsWarmup(ctx context.Context, payload ReportsWarmupPayload, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// RewarmingInvalidator bumps the report cache version and queues a
// warmup run, so dashboards repopulate without waiting for the next
// scheduled one.
type RewarmingInvalidator struct {
	Cache    Bumper
	Enqueuer WarmupEnqueuer
}

// Bump invalidates the cache and schedules the rewarm. Bursts of
// mutations collapse into a single queued task.
func (r *RewarmingInvalidator) Bump(ctx context.Context) error {
	if err := r.Cache.Bump(ctx); err != nil {
		return err
	}
	if r.Enqueuer == nil {
		return nil
	}
	_, err := r.Enqueuer.EnqueueReportsWarmup(ctx, ReportsWarmupPayload{}, asynq.Unique(time.Minute))
	if err != nil && !errors.Is(err, asynq.ErrDuplicateTask) {
		return err
	}
	return nil
}
