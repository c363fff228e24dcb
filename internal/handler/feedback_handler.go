package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-voice-api/internal/dto"
	"github.com/noah-isme/campus-voice-api/internal/service"
	appErrors "github.com/noah-isme/campus-voice-api/pkg/errors"
	"github.com/noah-isme/campus-voice-api/pkg/response"
)

// FeedbackHandler exposes the grievance submission endpoint.
type FeedbackHandler struct {
	feedback *service.FeedbackService
}

// NewFeedbackHandler constructs FeedbackHandler.
func NewFeedbackHandler(feedback *service.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{feedback: feedback}
}

// Submit godoc
// @Summary Submit anonymous feedback
// @Tags Feedback
// @Accept json
// @Produce json
// @Param payload body dto.SubmitFeedbackRequest true "Feedback payload"
// @Success 201 {object} response.Envelope
// @Router /feedback [post]
func (h *FeedbackHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.SubmitFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	result, err := h.feedback.Submit(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.Duplicate {
		response.JSON(c, http.StatusOK, result, nil)
		return
	}
	response.Created(c, result)
}
