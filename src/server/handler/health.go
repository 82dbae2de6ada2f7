package handler

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	DB        *sql.DB
	Version   string
	StartTime time.Time
}

// Healthz is the liveness probe; it never touches dependencies
func (h *HealthHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": h.Version,
		"uptime":  time.Since(h.StartTime).Round(time.Second).String(),
	})
}

// Readyz is the readiness probe; it verifies the database
func (h *HealthHandler) Readyz(c *gin.Context) {
	if err := h.DB.Ping(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"checks": gin.H{"database": err.Error()},
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"checks": gin.H{"database": "ok"},
	})
}
