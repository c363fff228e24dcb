package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-voice-api/internal/service"
	"github.com/noah-isme/campus-voice-api/pkg/response"
)

// StatsHandler exposes dashboard counters and exports.
type StatsHandler struct {
	stats *service.StatsService
}

// NewStatsHandler constructs StatsHandler.
func NewStatsHandler(stats *service.StatsService) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// Dashboard godoc
// @Summary Aggregate issue counters
// @Tags Stats
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /stats/dashboard [get]
func (h *StatsHandler) Dashboard(c *gin.Context) {
	stats, err := h.stats.Dashboard(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Export godoc
// @Summary Export the issue list
// @Tags Stats
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /stats/export [get]
func (h *StatsHandler) Export(c *gin.Context) {
	result, err := h.stats.ExportIssues(c.Request.Context(), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(http.StatusOK, result.ContentType, result.Data)
}
