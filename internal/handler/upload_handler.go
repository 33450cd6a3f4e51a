package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"juris-rag-go/internal/model"
	"juris-rag-go/internal/service"
)

// UploadHandler serves document uploads and the ingestion run history.
type UploadHandler struct {
	uploadService service.UploadService
}

// NewUploadHandler creates an UploadHandler.
func NewUploadHandler(uploadService service.UploadService) *UploadHandler {
	return &UploadHandler{uploadService: uploadService}
}

// UploadBlob handles POST /api/upload_blob.
func (h *UploadHandler) UploadBlob(c *gin.Context) {
	var req model.UploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c)
		return
	}
	code, err := h.uploadService.Upload(c.Request.Context(), req)
	if err != nil {
		respondError(c, "upload", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  "File " + req.Filename + " uploaded, ingestion scheduled",
		"iso_code": code,
	})
}

// ListRuns handles GET /api/ingestion_runs?iso_code=XX&limit=N.
func (h *UploadHandler) ListRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	runs, err := h.uploadService.Runs(c.Request.Context(), c.Query("iso_code"), limit)
	if err != nil {
		respondError(c, "list runs", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}
