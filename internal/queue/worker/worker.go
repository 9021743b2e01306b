package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/dkoller/taskhub/internal/domain/job"
	"github.com/dkoller/taskhub/internal/observability"
)

type JobsRepository interface {
	ClaimNext(ctx context.Context, workerID string) (job.Job, error)
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error
}

// Waiter blocks until a job nudge arrives or the wait expires. The redis
// client satisfies it; a nil Waiter degrades to plain polling.
type Waiter interface {
	WaitNudge(ctx context.Context, maxWait time.Duration) bool
}

type Config struct {
	PollInterval time.Duration
	WorkerID     string
}

type Worker struct {
	cfg    Config
	repo   JobsRepository
	waiter Waiter
	exec   Executor
	log    *slog.Logger
	prom   *observability.Prom
}

// Executor performs one job; the worker owns claiming, retry and
// bookkeeping around it.
type Executor interface {
	Execute(ctx context.Context, j job.Job) error
}

func New(cfg Config, repo JobsRepository, exec Executor, waiter Waiter, log *slog.Logger, prom *observability.Prom) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if log == nil {
		log = slog.Default()
	}

	return &Worker{
		cfg:    cfg,
		repo:   repo,
		waiter: waiter,
		exec:   exec,
		log:    log,
		prom:   prom,
	}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Info("worker received shutdown signal")
			return nil
		default:
		}

		worked, err := w.ProcessOne(ctx)

		if err != nil {
			w.log.Error("worker claim error", "err", err)
		}

		if worked {
			// drain the queue before sleeping again
			continue
		}

		w.idle(ctx)
	}
}

func (w *Worker) idle(ctx context.Context) {
	if w.waiter != nil {
		w.waiter.WaitNudge(ctx, w.cfg.PollInterval)
		return
	}

	select {
	case <-ctx.Done():
	case <-time.After(w.cfg.PollInterval):
	}
}
