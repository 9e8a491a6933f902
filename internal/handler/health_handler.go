package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/GTDGit/onhand_api/internal/cache"
	"github.com/GTDGit/onhand_api/internal/utils"
)

var startTime = time.Now()

// HealthHandler provides health endpoint.
type HealthHandler struct {
	db    *sqlx.DB
	cache cache.Cache
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db *sqlx.DB, c cache.Cache) *HealthHandler {
	return &HealthHandler{db: db, cache: c}
}

// GetHealth responds with service, database and cache status.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	dbStatus := "connected"
	if err := h.db.PingContext(ctx); err != nil {
		dbStatus = "disconnected"
	}

	cacheStatus := "connected"
	if _, err := h.cache.Get(ctx, "health:ping"); err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		cacheStatus = "disconnected"
	}

	data := gin.H{
		"status":  "healthy",
		"version": "1.0.0",
		"uptime":  int(time.Since(startTime).Seconds()),
		"database": gin.H{
			"driver": h.db.DriverName(),
			"status": dbStatus,
		},
		"cache": gin.H{
			"status": cacheStatus,
		},
	}

	if dbStatus != "connected" {
		data["status"] = "unhealthy"
		utils.ErrorWithData(c, 503, "UNHEALTHY", "Database is unreachable", data)
		return
	}
	utils.Success(c, 200, "Service is healthy", data)
}
