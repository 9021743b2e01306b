package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/dkoller/taskhub/internal/domain/job"
	"github.com/dkoller/taskhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// JobsRepo is the outbox for email sends: handlers enqueue, the worker
// claims and drains.
type JobsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewJobsRepo(pool *pgxpool.Pool, prom *observability.Prom) *JobsRepo {
	return &JobsRepo{pool: pool, prom: prom}
}

func (r *JobsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (r *JobsRepo) Create(ctx context.Context, req job.CreateRequest) (job.Job, error) {
	j := job.New(req)

	err := r.observe("jobs.create", func() error {
		_, err := r.pool.Exec(ctx, insertJobSQL,
			j.ID, j.Type, j.Payload, string(j.Status), j.Attempts, j.MaxAttempts,
			j.RunAt, j.LockedAt, j.LockedBy, j.LastError, j.CreatedAt, j.UpdatedAt)
		return err
	})

	if err != nil {
		return job.Job{}, err
	}

	return j, nil
}

const insertJobSQL = `INSERT INTO jobs (
	id, type, payload, status, attempts, max_attempts,
	run_at, locked_at, locked_by, last_error, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`

// ClaimNext locks the oldest runnable pending job for this worker.
// SKIP LOCKED lets multiple workers drain the table without stepping on
// each other.
func (r *JobsRepo) ClaimNext(ctx context.Context, workerID string) (job.Job, error) {
	var j job.Job

	err := r.observe("jobs.claim_next", func() error {
		return r.pool.QueryRow(ctx, `
			UPDATE jobs
			SET status = 'processing',
				attempts = attempts + 1,
				locked_at = NOW(),
				locked_by = $1,
				updated_at = NOW()
			WHERE id = (
				SELECT id FROM jobs
				WHERE status = 'pending' AND run_at <= NOW()
				ORDER BY run_at ASC, created_at ASC
				FOR UPDATE SKIP LOCKED
				LIMIT 1
			)
			RETURNING id, type, payload, status, attempts, max_attempts,
				run_at, locked_at, locked_by, last_error, created_at, updated_at
		`, workerID).Scan(
			&j.ID, &j.Type, &j.Payload, &j.Status, &j.Attempts, &j.MaxAttempts,
			&j.RunAt, &j.LockedAt, &j.LockedBy, &j.LastError, &j.CreatedAt, &j.UpdatedAt,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return job.Job{}, job.ErrJobNotFound
		}

		return job.Job{}, err
	}

	return j, nil
}

func (r *JobsRepo) MarkDone(ctx context.Context, id string) error {
	return r.observe("jobs.mark_done", func() error {
		_, err := r.pool.Exec(ctx, `
			UPDATE jobs
			SET status = 'done',
				locked_at = NULL,
				locked_by = NULL,
				updated_at = NOW()
			WHERE id = $1
		`, id)
		return err
	})
}

func (r *JobsRepo) MarkFailed(ctx context.Context, id string, errMsg string) error {
	return r.observe("jobs.mark_failed", func() error {
		_, err := r.pool.Exec(ctx, `
			UPDATE jobs
			SET status = 'failed',
				locked_at = NULL,
				locked_by = NULL,
				last_error = $2,
				updated_at = NOW()
			WHERE id = $1
		`, id, errMsg)
		return err
	})
}

// Reschedule puts a failed attempt back to pending with a future run_at.
func (r *JobsRepo) Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error {
	return r.observe("jobs.reschedule", func() error {
		_, err := r.pool.Exec(ctx, `
			UPDATE jobs
			SET status = 'pending',
				locked_at = NULL,
				locked_by = NULL,
				run_at = $2,
				last_error = $3,
				updated_at = NOW()
			WHERE id = $1
		`, id, runAt, errMsg)
		return err
	})
}
