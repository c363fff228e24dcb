package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-voice-api/internal/dto"
	"github.com/noah-isme/campus-voice-api/internal/service"
	"github.com/noah-isme/campus-voice-api/pkg/response"
)

// CronHandler exposes the manual trigger for the SLA breach sweep.
type CronHandler struct {
	issues *service.IssueService
}

// NewCronHandler constructs CronHandler.
func NewCronHandler(issues *service.IssueService) *CronHandler {
	return &CronHandler{issues: issues}
}

// CheckEscalation godoc
// @Summary Run the SLA breach sweep now
// @Tags Cron
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /cron/check-escalation [post]
func (h *CronHandler) CheckEscalation(c *gin.Context) {
	escalated, skipped, err := h.issues.TrySweep(c.Request.Context(), time.Now().UTC())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.SweepResponse{EscalatedCount: escalated, Skipped: skipped}, nil)
}
