package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"docchat/internal/app"
	"docchat/internal/transport/http/response"
)

type UploadHandler struct {
	uploadService *app.UploadService
}

type CommitUploadRequest struct {
	FileName string `json:"file_name" binding:"max=256"`
}

func NewUploadHandler(uploadService *app.UploadService) *UploadHandler {
	return &UploadHandler{uploadService: uploadService}
}

// RequestSlot hands out a single-use signed destination for the file body.
func (h *UploadHandler) RequestSlot(c *gin.Context) {
	slot, err := h.uploadService.RequestSlot(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusServiceUnavailable, response.CodeUpstreamError, err.Error())
		return
	}
	response.OK(c, slot)
}

// Commit exchanges a completed upload for a new chat.
func (h *UploadHandler) Commit(c *gin.Context) {
	uploadID := c.Param("id")

	var req CommitUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	chat, err := h.uploadService.Commit(c.Request.Context(), uploadID, req.FileName)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput),
			errors.Is(err, app.ErrInvalidFileType),
			errors.Is(err, app.ErrUploadIncomplete):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrStorageUnavailable):
			response.Error(c, http.StatusServiceUnavailable, response.CodeUpstreamError, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "commit upload failed")
		}
		return
	}
	response.OK(c, chat)
}
