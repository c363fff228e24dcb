package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-voice-api/internal/dto"
	"github.com/noah-isme/campus-voice-api/internal/models"
	"github.com/noah-isme/campus-voice-api/internal/service"
	appErrors "github.com/noah-isme/campus-voice-api/pkg/errors"
	"github.com/noah-isme/campus-voice-api/pkg/response"
)

// IssueHandler exposes issue lifecycle endpoints.
type IssueHandler struct {
	issues *service.IssueService
}

// NewIssueHandler constructs IssueHandler.
func NewIssueHandler(issues *service.IssueService) *IssueHandler {
	return &IssueHandler{issues: issues}
}

// List godoc
// @Summary List issues visible to the caller
// @Tags Issues
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /issues [get]
func (h *IssueHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	page, size := pageParams(c)
	issues, pagination, err := h.issues.ListForViewer(c.Request.Context(), claims, page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, issues, pagination)
}

// ListAll godoc
// @Summary List every issue (oversight)
// @Tags Issues
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /issues/all [get]
func (h *IssueHandler) ListAll(c *gin.Context) {
	page, size := pageParams(c)
	issues, pagination, err := h.issues.ListAll(c.Request.Context(), page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, issues, pagination)
}

// Get godoc
// @Summary Issue detail with its update ledger
// @Tags Issues
// @Produce json
// @Param id path string true "Issue ID"
// @Success 200 {object} response.Envelope
// @Router /issues/{id} [get]
func (h *IssueHandler) Get(c *gin.Context) {
	detail, err := h.issues.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// AddUpdate godoc
// @Summary Append a progress update to an issue
// @Tags Issues
// @Accept json
// @Produce json
// @Param id path string true "Issue ID"
// @Param payload body dto.AddUpdateRequest true "Update payload"
// @Success 201 {object} response.Envelope
// @Router /issues/{id}/updates [post]
func (h *IssueHandler) AddUpdate(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.AddUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	update, err := h.issues.AddUpdate(c.Request.Context(), c.Param("id"), claims.Role, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, update)
}

// Escalate godoc
// @Summary Escalate an issue to the next role in its chain
// @Tags Issues
// @Accept json
// @Produce json
// @Param id path string true "Issue ID"
// @Param payload body dto.EscalateRequest false "Escalation payload"
// @Success 200 {object} response.Envelope
// @Router /issues/{id}/escalate [post]
func (h *IssueHandler) Escalate(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.EscalateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	issue, err := h.issues.Escalate(c.Request.Context(), c.Param("id"), req.Reason, claims.Role, models.TriggerManual)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, issue, nil)
}

// Resolve godoc
// @Summary Mark an issue resolved
// @Tags Issues
// @Produce json
// @Param id path string true "Issue ID"
// @Success 200 {object} response.Envelope
// @Router /issues/{id}/resolve [post]
func (h *IssueHandler) Resolve(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	issue, err := h.issues.Resolve(c.Request.Context(), c.Param("id"), claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, issue, nil)
}

func pageParams(c *gin.Context) (int, int) {
	page := 1
	size := 20
	if v, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil && v > 0 {
		size = v
	}
	return page, size
}
