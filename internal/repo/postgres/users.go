package postgres

import (
	"context"
	"errors"

	"github.com/dkoller/taskhub/internal/domain/user"
	"github.com/dkoller/taskhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) error {
	return r.observe("users.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO users (id, name, email, password_hash, age, created_at, updated_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			u.ID, u.Name, u.Email, u.PasswordHash, u.Age, u.CreatedAt, u.UpdatedAt,
		)

		if IsUniqueViolation(err) {
			return user.ErrEmailTaken
		}

		return err
	})
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User

	err := r.observe("users.get_by_email", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT id, name, email, password_hash, age, created_at, updated_at
			 FROM users
			 WHERE email = $1`,
			user.NormalizeEmail(email),
		).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Age, &u.CreatedAt, &u.UpdatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	var u user.User

	err := r.observe("users.get_by_id", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT id, name, email, password_hash, age, created_at, updated_at
			 FROM users
			 WHERE id = $1`,
			id,
		).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Age, &u.CreatedAt, &u.UpdatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, err
	}
	return u, nil
}

// Update persists the whitelisted profile fields. The password hash is
// written as-is: hashing happened before this call, and an unchanged
// hash round-trips untouched so it is never re-hashed.
func (r *UsersRepo) Update(ctx context.Context, u user.User) (user.User, error) {
	var out user.User

	err := r.observe("users.update", func() error {
		return r.pool.QueryRow(ctx,
			`UPDATE users
				SET name = $2,
					email = $3,
					password_hash = $4,
					age = $5,
					updated_at = NOW()
			 WHERE id = $1
			 RETURNING id, name, email, password_hash, age, created_at, updated_at`,
			u.ID, u.Name, u.Email, u.PasswordHash, u.Age,
		).Scan(&out.ID, &out.Name, &out.Email, &out.PasswordHash, &out.Age, &out.CreatedAt, &out.UpdatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		if IsUniqueViolation(err) {
			return user.User{}, user.ErrEmailTaken
		}

		return user.User{}, err
	}

	return out, nil
}

// Delete removes the user. user_tokens and tasks rows go with it via
// ON DELETE CASCADE.
func (r *UsersRepo) Delete(ctx context.Context, id string) error {
	var tag int64

	err := r.observe("users.delete", func() error {
		res, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
		tag = res.RowsAffected()
		return err
	})

	if err != nil {
		return err
	}

	if tag == 0 {
		return user.ErrNotFound
	}

	return nil
}

func (r *UsersRepo) SetAvatar(ctx context.Context, id string, image []byte) error {
	var tag int64

	err := r.observe("users.set_avatar", func() error {
		res, err := r.pool.Exec(ctx,
			`UPDATE users SET avatar = $2, updated_at = NOW() WHERE id = $1`, id, image)
		tag = res.RowsAffected()
		return err
	})

	if err != nil {
		return err
	}

	if tag == 0 {
		return user.ErrNotFound
	}

	return nil
}

func (r *UsersRepo) ClearAvatar(ctx context.Context, id string) error {
	var tag int64

	err := r.observe("users.clear_avatar", func() error {
		res, err := r.pool.Exec(ctx,
			`UPDATE users SET avatar = NULL, updated_at = NOW() WHERE id = $1`, id)
		tag = res.RowsAffected()
		return err
	})

	if err != nil {
		return err
	}

	if tag == 0 {
		return user.ErrNotFound
	}

	return nil
}

// GetAvatar returns the stored image bytes. A missing user and a user
// without an avatar both come back as ErrAvatarNotFound; the public
// endpoint does not distinguish them.
func (r *UsersRepo) GetAvatar(ctx context.Context, id string) ([]byte, error) {
	var img []byte

	err := r.observe("users.get_avatar", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT avatar FROM users WHERE id = $1`, id).Scan(&img)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrAvatarNotFound
		}

		return nil, err
	}

	if len(img) == 0 {
		return nil, user.ErrAvatarNotFound
	}

	return img, nil
}
