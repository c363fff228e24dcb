package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-voice-api/internal/service"
	appErrors "github.com/noah-isme/campus-voice-api/pkg/errors"
	"github.com/noah-isme/campus-voice-api/pkg/response"
)

// EvidenceHandler exposes evidence upload and download endpoints.
type EvidenceHandler struct {
	evidence *service.EvidenceService
}

// NewEvidenceHandler constructs EvidenceHandler.
func NewEvidenceHandler(evidence *service.EvidenceService) *EvidenceHandler {
	return &EvidenceHandler{evidence: evidence}
}

// Upload godoc
// @Summary Upload an evidence file
// @Tags Evidence
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Evidence file"
// @Success 201 {object} response.Envelope
// @Router /evidence [post]
func (h *EvidenceHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file field is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer file.Close()

	result, err := h.evidence.Upload(fileHeader.Filename, fileHeader.Size, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Download godoc
// @Summary Download evidence by signed reference
// @Tags Evidence
// @Produce application/octet-stream
// @Param ref query string true "Signed reference"
// @Success 200 {file} file
// @Router /evidence/download [get]
func (h *EvidenceHandler) Download(c *gin.Context) {
	ref := c.Query("ref")
	if ref == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "ref query parameter is required"))
		return
	}
	download, err := h.evidence.Resolve(ref)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", download.Filename))
	c.DataFromReader(http.StatusOK, -1, "application/octet-stream", download.File, nil)
}
