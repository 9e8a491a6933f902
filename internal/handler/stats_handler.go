package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/onhand_api/internal/service"
	"github.com/GTDGit/onhand_api/internal/utils"
)

// StatsHandler serves the admin dashboard figures and the order export.
type StatsHandler struct {
	stats *service.StatsService
}

// NewStatsHandler constructs a StatsHandler.
func NewStatsHandler(stats *service.StatsService) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// GetStats handles GET /v1/admin/stats
func (h *StatsHandler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()
	summary, err := h.stats.Summary(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	sold, err := h.stats.SoldByProduct(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, "Stats retrieved", gin.H{
		"summary":       summary,
		"soldByProduct": sold,
	})
}

// ExportOrders handles GET /v1/admin/orders/export
func (h *StatsHandler) ExportOrders(c *gin.Context) {
	filename := fmt.Sprintf("orders-%s.csv", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Status(http.StatusOK)

	if err := h.stats.ExportCSV(c.Request.Context(), c.Writer); err != nil {
		// Headers are already out; the truncated file is all we can send.
		log.Error().Err(err).Msg("order export failed")
	}
}
