package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/dkoller/taskhub/internal/config"
	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	pingDB    func(ctx context.Context) error
	pingRedis func(ctx context.Context) error
}

// NewHealthHandler takes ping closures so it does not depend on the
// concrete pool or redis client. pingRedis may be nil when redis is not
// configured.
func NewHealthHandler(pingDB, pingRedis func(ctx context.Context) error) *HealthHandler {
	return &HealthHandler{pingDB: pingDB, pingRedis: pingRedis}
}

// Healthz answers as long as the process is up.
func (h *HealthHandler) Healthz(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readyz checks the dependencies the API cannot serve without.
func (h *HealthHandler) Readyz(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	checks := gin.H{}
	healthy := true

	if err := h.pingDB(cctx); err != nil {
		checks["db"] = err.Error()
		healthy = false
	} else {
		checks["db"] = "ok"
	}

	if h.pingRedis != nil {
		if err := h.pingRedis(cctx); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		} else {
			checks["redis"] = "ok"
		}
	}

	if !healthy {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "checks": checks})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"status": "ready", "checks": checks})
}
