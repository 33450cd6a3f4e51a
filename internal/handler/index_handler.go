package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"juris-rag-go/internal/model"
	"juris-rag-go/internal/service"
)

// IndexHandler serves index maintenance.
type IndexHandler struct {
	indexService service.IndexService
}

// NewIndexHandler creates an IndexHandler.
func NewIndexHandler(indexService service.IndexService) *IndexHandler {
	return &IndexHandler{indexService: indexService}
}

// Cleanup handles POST /api/cleanup_index.
func (h *IndexHandler) Cleanup(c *gin.Context) {
	var req model.CleanupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c)
		return
	}
	res, err := h.indexService.Cleanup(c.Request.Context(), req.ISOCode)
	if err != nil {
		respondError(c, "cleanup", err)
		return
	}
	c.JSON(http.StatusOK, res)
}
