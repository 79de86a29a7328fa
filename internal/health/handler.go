// Package health implements liveness/readiness probes, adapted from the
// teacher's internal/v1/health/handler.go with the SFU gRPC check
// replaced by a Postgres ping and Redis (bus) ping — the two external
// dependencies this process actually has.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/boardsync/server/internal/bus"
)

// Pinger is satisfied by *sql.DB / *storage.PostgresStore's underlying
// connection pool.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handler serves /health/live and /health/ready.
type Handler struct {
	db  Pinger
	bus *bus.Service
}

func NewHandler(db Pinger, busSvc *bus.Service) *Handler {
	return &Handler{db: db, bus: busSvc}
}

type livenessResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type readinessResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Liveness reports the process is alive, no dependency checks.
func (h *Handler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, livenessResponse{Status: "alive", Timestamp: time.Now().UTC().Format(time.RFC3339)})
}

// Readiness reports 200 only if every critical dependency is reachable.
func (h *Handler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]string)
	healthy := true

	if err := h.db.PingContext(ctx); err != nil {
		checks["postgres"] = "unhealthy"
		healthy = false
	} else {
		checks["postgres"] = "healthy"
	}

	if h.bus != nil {
		if err := h.bus.Ping(ctx); err != nil {
			checks["redis"] = "unhealthy"
			healthy = false
		} else {
			checks["redis"] = "healthy"
		}
	} else {
		checks["redis"] = "disabled"
	}

	status, code := "ready", http.StatusOK
	if !healthy {
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	c.JSON(code, readinessResponse{Status: status, Checks: checks, Timestamp: time.Now().UTC().Format(time.RFC3339)})
}
