package postgres

import (
	"context"
	"errors"
	"strconv"

	"github.com/dkoller/taskhub/internal/domain/task"
	"github.com/dkoller/taskhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TasksRepo scopes every read and mutation by owner: a task belonging to
// another user is indistinguishable from a task that does not exist.
type TasksRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewTasksRepo(pool *pgxpool.Pool, prom *observability.Prom) *TasksRepo {
	return &TasksRepo{pool: pool, prom: prom}
}

func (r *TasksRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (r *TasksRepo) Create(ctx context.Context, t task.Task) error {
	return r.observe("tasks.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO tasks (id, description, completed, owner_id, created_at, updated_at)
			 VALUES ($1,$2,$3,$4,$5,$6)`,
			t.ID, t.Description, t.Completed, t.OwnerID, t.CreatedAt, t.UpdatedAt,
		)
		return err
	})
}

func (r *TasksRepo) GetByID(ctx context.Context, id, ownerID string) (task.Task, error) {
	var t task.Task

	err := r.observe("tasks.get_by_id", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT id, description, completed, owner_id, created_at, updated_at
			 FROM tasks
			 WHERE id = $1 AND owner_id = $2`,
			id, ownerID,
		).Scan(&t.ID, &t.Description, &t.Completed, &t.OwnerID, &t.CreatedAt, &t.UpdatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return task.Task{}, task.ErrNotFound
		}

		return task.Task{}, err
	}

	return t, nil
}

func (r *TasksRepo) ListByOwner(ctx context.Context, ownerID string, filter task.ListFilter) ([]task.Task, error) {
	query, args, limit := buildListQuery(ownerID, filter)

	var output []task.Task

	err := r.observe("tasks.list", func() error {
		rows, err := r.pool.Query(ctx, query, args...)

		if err != nil {
			return err
		}

		defer rows.Close()

		output = make([]task.Task, 0, limit)

		for rows.Next() {
			var t task.Task

			err = rows.Scan(&t.ID, &t.Description, &t.Completed, &t.OwnerID, &t.CreatedAt, &t.UpdatedAt)

			if err != nil {
				return err
			}

			output = append(output, t)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return output, nil
}

func (r *TasksRepo) Update(ctx context.Context, t task.Task) (task.Task, error) {
	var out task.Task

	err := r.observe("tasks.update", func() error {
		return r.pool.QueryRow(ctx,
			`UPDATE tasks
				SET description = $3,
					completed = $4,
					updated_at = NOW()
			 WHERE id = $1 AND owner_id = $2
			 RETURNING id, description, completed, owner_id, created_at, updated_at`,
			t.ID, t.OwnerID, t.Description, t.Completed,
		).Scan(&out.ID, &out.Description, &out.Completed, &out.OwnerID, &out.CreatedAt, &out.UpdatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return task.Task{}, task.ErrNotFound
		}

		return task.Task{}, err
	}

	return out, nil
}

func (r *TasksRepo) Delete(ctx context.Context, id, ownerID string) error {
	var affected int64

	err := r.observe("tasks.delete", func() error {
		res, err := r.pool.Exec(ctx,
			`DELETE FROM tasks WHERE id = $1 AND owner_id = $2`, id, ownerID)
		affected = res.RowsAffected()
		return err
	})

	if err != nil {
		return err
	}

	if affected == 0 {
		return task.ErrNotFound
	}

	return nil
}

// buildListQuery assembles the filtered list statement. Placeholder
// positions shift when the completed filter is present, so they are
// numbered off the args slice.
func buildListQuery(ownerID string, filter task.ListFilter) (string, []interface{}, int) {
	query := `SELECT id, description, completed, owner_id, created_at, updated_at
		FROM tasks
		WHERE owner_id = $1`

	args := []interface{}{ownerID}

	if filter.Completed != nil {
		query += ` AND completed = $2`
		args = append(args, *filter.Completed)
	}

	if filter.SortDesc {
		query += ` ORDER BY created_at DESC, id DESC`
	} else {
		query += ` ORDER BY created_at ASC, id ASC`
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	query += ` LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, limit, filter.Skip)

	return query, args, limit
}
