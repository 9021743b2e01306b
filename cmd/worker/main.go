package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dkoller/taskhub/internal/config"
	"github.com/dkoller/taskhub/internal/db"
	"github.com/dkoller/taskhub/internal/notifications"
	"github.com/dkoller/taskhub/internal/observability"
	"github.com/dkoller/taskhub/internal/queue/redisclient"
	"github.com/dkoller/taskhub/internal/queue/worker"
	"github.com/dkoller/taskhub/internal/repo/postgres"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	_ = godotenv.Load()

	cfg := config.MustLoad()
	log := observability.NewLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(cfg.DBURL)

	if err != nil {
		log.Error("connect to postgres", "error", err)
		os.Exit(1)
	}

	defer pool.Close()

	prom := observability.NewProm(prometheus.NewRegistry())

	jobsRepo := postgres.NewJobsRepo(pool, prom)

	// without a mail provider key the worker logs sends instead of
	// calling out; handy for local runs
	var notifier notifications.Notifier = notifications.NewLogNotifier(log)

	if cfg.MailAPIKey != "" {
		notifier = notifications.NewHTTPNotifier(cfg.MailAPIURL, cfg.MailAPIKey, cfg.MailFrom)
	}

	notifier = notifications.NewProtectedNotifier(notifier, notifications.ProtectedNotifierConfig{})

	var waiter worker.Waiter

	if cfg.RedisAddr != "" {
		redisCli := redisclient.New(redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		if err := redisCli.Ping(ctx); err != nil {
			log.Warn("redis unreachable, falling back to polling", "error", err)
			_ = redisCli.Close()
		} else {
			defer redisCli.Close()
			waiter = redisCli
		}
	}

	w := worker.New(worker.Config{
		PollInterval: 2 * time.Second,
		WorkerID:     "worker-" + uuid.NewString()[:8],
	}, jobsRepo, worker.NewEmailExecutor(notifier), waiter, log, prom)

	log.Info("worker starting")

	if err := w.Run(ctx); err != nil {
		log.Error("worker stopped", "error", err)
		os.Exit(1)
	}

	log.Info("worker stopped")
}
