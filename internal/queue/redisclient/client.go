package redisclient

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// nudgeKey is the list the API pushes to after enqueueing a job so the
// worker wakes up immediately instead of waiting a poll tick.
const nudgeKey = "taskhub:jobs:nudge"

type Client struct {
	redisdb *redis.Client
}

type Config struct {
	Addr     string
	Password string
	DB       int
}

func New(cfg Config) *Client {
	redisdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	return &Client{redisdb: redisdb}
}

func (c *Client) Ping(ctx context.Context) error {
	return c.redisdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.redisdb.Close()
}

// Nudge is best effort: losing a nudge only costs one poll interval.
func (c *Client) Nudge(ctx context.Context, jobID string) {
	_ = c.redisdb.LPush(ctx, nudgeKey, jobID).Err()
	_ = c.redisdb.LTrim(ctx, nudgeKey, 0, 99).Err()
}

// WaitNudge blocks up to maxWait for a nudge. Returns true if one
// arrived, false on timeout or error; the worker falls back to polling
// either way.
func (c *Client) WaitNudge(ctx context.Context, maxWait time.Duration) bool {
	res, err := c.redisdb.BLPop(ctx, maxWait, nudgeKey).Result()

	return err == nil && len(res) > 0
}
