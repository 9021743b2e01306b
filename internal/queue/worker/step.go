package worker

import (
	"context"
	"errors"
	"time"

	"github.com/dkoller/taskhub/internal/domain/job"
)

// ProcessOne claims and executes a single job. Returns whether any job
// was claimed so the run loop knows when to go idle.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	claimCtx, cancel := context.WithTimeout(ctx, 2*time.Second)

	j, err := w.repo.ClaimNext(claimCtx, w.cfg.WorkerID)
	cancel()

	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			return false, nil
		}

		return false, err
	}

	start := time.Now()

	if w.prom != nil {
		w.prom.JobsInFlight.Inc()
	}

	err = w.exec.Execute(ctx, j)

	if w.prom != nil {
		w.prom.JobsInFlight.Dec()
	}

	if err != nil {
		result := w.handleFailure(ctx, j, err)
		w.record(j.Type, result, start)
		return true, nil
	}

	err = w.repo.MarkDone(ctx, j.ID)

	if err != nil {
		_ = w.repo.MarkFailed(ctx, j.ID, "mark_done_failed: "+err.Error())
		w.record(j.Type, "failed", start)
		return true, err
	}

	w.record(j.Type, "done", start)
	return true, nil
}

// handleFailure either reschedules with backoff or marks the job failed
// once attempts are exhausted. Returns the metric result label.
func (w *Worker) handleFailure(ctx context.Context, j job.Job, execErr error) string {
	w.log.Warn("job attempt failed",
		"job_id", j.ID, "job_type", j.Type, "attempt", j.Attempts, "err", execErr)

	if j.Attempts >= j.MaxAttempts {
		if err := w.repo.MarkFailed(ctx, j.ID, execErr.Error()); err != nil {
			w.log.Error("mark failed error", "job_id", j.ID, "err", err)
		}
		return "failed"
	}

	runAt := time.Now().UTC().Add(ExponentialBackoff(j.Attempts))

	if err := w.repo.Reschedule(ctx, j.ID, runAt, execErr.Error()); err != nil {
		w.log.Error("reschedule error", "job_id", j.ID, "err", err)
	}

	return "retry"
}

func (w *Worker) record(jobType, result string, start time.Time) {
	if w.prom == nil {
		return
	}
	w.prom.JobResults.WithLabelValues(jobType, result).Inc()
	w.prom.JobDuration.WithLabelValues(jobType, result).Observe(time.Since(start).Seconds())
}
