// Package handlers provides HTTP request handlers.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Pinger is implemented by *sql.DB and *pgxpool.Pool.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Stats reports connection usage for /health/info.
type Stats interface {
	Stats() map[string]any
}

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	db      Pinger
	stats   Stats
	version string
}

// NewHealthHandler creates a new health handler. db and stats may be nil when
// the service runs without a database.
func NewHealthHandler(db Pinger, stats Stats, version string) *HealthHandler {
	return &HealthHandler{db: db, stats: stats, version: version}
}

// Live handles liveness probe (is the process alive?).
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready handles readiness probe (is the service ready to accept traffic?).
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if h.db == nil {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"checks": map[string]string{"database": "disabled"},
		})
		return
	}

	if err := h.db.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "error",
			"checks": map[string]string{
				"database": "unhealthy: " + err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"checks": map[string]string{
			"database": "healthy",
		},
	})
}

// Info returns application information.
// GET /health/info
func (h *HealthHandler) Info(c *gin.Context) {
	info := gin.H{
		"app":     "seedgraph",
		"version": h.version,
	}
	if h.stats != nil {
		info["database"] = h.stats.Stats()
	}
	c.JSON(http.StatusOK, info)
}
