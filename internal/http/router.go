package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/dkoller/taskhub/internal/auth"
	"github.com/dkoller/taskhub/internal/cache"
	"github.com/dkoller/taskhub/internal/config"
	"github.com/dkoller/taskhub/internal/http/handlers"
	"github.com/dkoller/taskhub/internal/http/middlewares"
	"github.com/dkoller/taskhub/internal/observability"
	"github.com/dkoller/taskhub/internal/queue/redisclient"
	"github.com/dkoller/taskhub/internal/repo/postgres"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const maxJSONBodyBytes = 64 << 10 // generous for profile/task payloads

// Deps carries everything the router wires together. Redis is optional;
// without it the worker just polls.
type Deps struct {
	Cfg   config.Config
	Log   *slog.Logger
	Pool  *pgxpool.Pool
	Redis *redisclient.Client
}

func NewRouter(d Deps) *gin.Engine {
	if d.Cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	prom := observability.NewProm(reg)

	usersRepo := postgres.NewUsersRepo(d.Pool, prom)
	tokensRepo := postgres.NewTokensRepo(d.Pool, prom)
	tasksRepo := postgres.NewTasksRepo(d.Pool, prom)
	jobsRepo := postgres.NewJobsRepo(d.Pool, prom)

	jwt := auth.NewManager(d.Cfg.JWTSecret, time.Duration(d.Cfg.TokenTTLDays)*24*time.Hour)

	var nudger handlers.Nudger
	var pingRedis func(ctx context.Context) error

	if d.Redis != nil {
		nudger = d.Redis
		pingRedis = d.Redis.Ping
	}

	avatarCache := cache.New(30 * time.Second)

	usersHandler := handlers.NewUsersHandler(usersRepo, tokensRepo, jobsRepo, jwt, nudger, avatarCache, d.Log)
	tasksHandler := handlers.NewTasksHandler(tasksRepo, d.Log)
	avatarHandler := handlers.NewAvatarHandler(usersRepo, avatarCache, d.Log)
	healthHandler := handlers.NewHealthHandler(d.Pool.Ping, pingRedis)

	authGate := middlewares.NewAuthMiddleware(jwt, usersRepo, tokensRepo)

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(d.Log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware([]string{"http://localhost:3000"}))
	r.Use(otelgin.Middleware("taskhub-api"))
	r.Use(prom.GinHandleMiddleware())

	r.GET("/healthz", healthHandler.Healthz)
	r.GET("/readyz", healthHandler.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// slows credential stuffing on the open endpoints
	loginLimiter := middlewares.NewRateLimiter(20, time.Minute)

	jsonBody := middlewares.MaxBodyBytes(maxJSONBodyBytes)
	requireJSON := middlewares.RequireJSON()

	users := r.Group("/users")
	{
		users.POST("", loginLimiter.ByIP(), jsonBody, requireJSON, usersHandler.SignUp)
		users.POST("/login", loginLimiter.ByIP(), jsonBody, requireJSON, usersHandler.Login)

		users.POST("/logout", authGate.RequireAuth(), usersHandler.Logout)
		users.POST("/logoutAll", authGate.RequireAuth(), usersHandler.LogoutAll)

		users.GET("/me", authGate.RequireAuth(), usersHandler.GetMe)
		users.PATCH("/me", authGate.RequireAuth(), jsonBody, requireJSON, usersHandler.UpdateMe)
		users.DELETE("/me", authGate.RequireAuth(), usersHandler.DeleteMe)

		// avatar upload is multipart, the public read has no auth
		users.POST("/me/avatar", authGate.RequireAuth(), middlewares.MaxBodyBytes(2<<20), avatarHandler.Upload)
		users.DELETE("/me/avatar", authGate.RequireAuth(), avatarHandler.Delete)
		users.GET("/:id/avatar", avatarHandler.GetByID)
	}

	tasks := r.Group("/tasks", authGate.RequireAuth())
	{
		tasks.POST("", jsonBody, requireJSON, tasksHandler.Create)
		tasks.GET("", tasksHandler.List)
		tasks.GET("/:id", tasksHandler.GetByID)
		tasks.PATCH("/:id", jsonBody, requireJSON, tasksHandler.Update)
		tasks.DELETE("/:id", tasksHandler.Delete)
	}

	return r
}
