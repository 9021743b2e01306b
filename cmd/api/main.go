package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dkoller/taskhub/internal/config"
	"github.com/dkoller/taskhub/internal/db"
	taskhubhttp "github.com/dkoller/taskhub/internal/http"
	"github.com/dkoller/taskhub/internal/observability"
	"github.com/dkoller/taskhub/internal/queue/redisclient"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg := config.MustLoad()
	log := observability.NewLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.OTLPEndpoint != "" {
		shutdown, err := observability.InitTracer(ctx, "taskhub-api", cfg.OTLPEndpoint)

		if err != nil {
			log.Error("init tracer", "error", err)
			os.Exit(1)
		}

		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(sctx)
		}()
	}

	if err := db.RunMigrations(ctx, cfg.DBURL); err != nil {
		log.Error("run migrations", "error", err)
		os.Exit(1)
	}

	pool, err := db.NewPool(cfg.DBURL)

	if err != nil {
		log.Error("connect to postgres", "error", err)
		os.Exit(1)
	}

	defer pool.Close()

	var redisCli *redisclient.Client

	if cfg.RedisAddr != "" {
		redisCli = redisclient.New(redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		if err := redisCli.Ping(ctx); err != nil {
			// nudges are an optimization, not a dependency
			log.Warn("redis unreachable, continuing without nudges", "error", err)
			_ = redisCli.Close()
			redisCli = nil
		} else {
			defer redisCli.Close()
		}
	}

	router := taskhubhttp.NewRouter(taskhubhttp.Deps{
		Cfg:   cfg,
		Log:   log,
		Pool:  pool,
		Redis: redisCli,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		log.Info("api listening", "port", cfg.Port, "env", cfg.Env)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		log.Info("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(sctx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
	}
}
