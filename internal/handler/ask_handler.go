package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"juris-rag-go/internal/model"
	"juris-rag-go/internal/service"
)

// AskHandler serves /api/ask.
type AskHandler struct {
	askService service.AskService
}

// NewAskHandler creates an AskHandler.
func NewAskHandler(askService service.AskService) *AskHandler {
	return &AskHandler{askService: askService}
}

// Ping answers GET /api/ask?ping=1 with a plaintext "ok".
func (h *AskHandler) Ping(c *gin.Context) {
	if c.Query("ping") == "" {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"success": false, "message": "use POST with a JSON body {\"question\": ...}"})
		return
	}
	c.String(http.StatusOK, "ok")
}

// Ask answers POST /api/ask.
func (h *AskHandler) Ask(c *gin.Context) {
	var req model.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c)
		return
	}
	resp, err := h.askService.Ask(c.Request.Context(), req.Question)
	if err != nil {
		respondError(c, "ask", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
