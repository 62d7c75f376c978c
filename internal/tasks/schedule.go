package tasks

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/serviexpress/pkg/queue"
	"github.com/hugh/serviexpress/pkg/util"
)

// Enqueuer is the part of asynq.Client the form server and scheduler use.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// RunSweepSchedule enqueues a document sweep at every occurrence of cronExpr
// until ctx is cancelled.
func RunSweepSchedule(ctx context.Context, q Enqueuer, cronExpr string, logger *slog.Logger) error {
	return runSchedule(ctx, q, cronExpr, logger, time.Now)
}

func runSchedule(ctx context.Context, q Enqueuer, cronExpr string, logger *slog.Logger, now func() time.Time) error {
	for {
		next, err := util.NextCronTime(cronExpr, now())
		if err != nil {
			return err
		}
		logger.Debug("next document sweep", "at", next)

		timer := time.NewTimer(next.Sub(now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		_, err = q.EnqueueContext(ctx, NewSweepDocumentsTask(),
			asynq.Queue(queue.QueueDefault),
			asynq.Unique(time.Hour),
		)
		switch {
		case errors.Is(err, asynq.ErrDuplicateTask):
			logger.Debug("document sweep already queued")
		case err != nil:
			logger.Error("failed to enqueue document sweep", "error", err)
		}
	}
}
