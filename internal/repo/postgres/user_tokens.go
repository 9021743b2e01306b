package postgres

import (
	"context"
	"time"

	"github.com/dkoller/taskhub/internal/observability"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TokensRepo is the user's token list: one row per live session, keyed
// by the HMAC digest of the raw bearer token. Row-per-token means
// concurrent logins and logouts for the same user never clobber each
// other the way a single mutated list column would.
type TokensRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewTokensRepo(pool *pgxpool.Pool, prom *observability.Prom) *TokensRepo {
	return &TokensRepo{pool: pool, prom: prom}
}

func (r *TokensRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (r *TokensRepo) Add(ctx context.Context, userID, tokenHash string) error {
	return r.observe("tokens.add", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO user_tokens (id, user_id, token_hash, created_at)
			 VALUES ($1,$2,$3,$4)
			 ON CONFLICT (user_id, token_hash) DO NOTHING`,
			uuid.NewString(), userID, tokenHash, time.Now().UTC(),
		)
		return err
	})
}

// Exists is the revocation check: a verified token is only accepted
// while its digest is still a member of the list.
func (r *TokensRepo) Exists(ctx context.Context, userID, tokenHash string) (bool, error) {
	var found bool

	err := r.observe("tokens.exists", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT EXISTS (
				SELECT 1 FROM user_tokens WHERE user_id = $1 AND token_hash = $2
			 )`,
			userID, tokenHash,
		).Scan(&found)
	})

	if err != nil {
		return false, err
	}

	return found, nil
}

// Remove deletes exactly the presented token's row (logout).
func (r *TokensRepo) Remove(ctx context.Context, userID, tokenHash string) error {
	return r.observe("tokens.remove", func() error {
		_, err := r.pool.Exec(ctx,
			`DELETE FROM user_tokens WHERE user_id = $1 AND token_hash = $2`,
			userID, tokenHash,
		)
		return err
	})
}

// RemoveAll clears the whole list (logoutAll). Deleting nothing is fine;
// the operation is idempotent.
func (r *TokensRepo) RemoveAll(ctx context.Context, userID string) error {
	return r.observe("tokens.remove_all", func() error {
		_, err := r.pool.Exec(ctx,
			`DELETE FROM user_tokens WHERE user_id = $1`, userID,
		)
		return err
	})
}
