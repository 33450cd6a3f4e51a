package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"juris-rag-go/internal/service"
)

// DiagnosticHandler serves /api/diagnostic.
type DiagnosticHandler struct {
	diagnosticService service.DiagnosticService
}

// NewDiagnosticHandler creates a DiagnosticHandler.
func NewDiagnosticHandler(diagnosticService service.DiagnosticService) *DiagnosticHandler {
	return &DiagnosticHandler{diagnosticService: diagnosticService}
}

// Report always answers 200; failing dependencies are listed in the body.
func (h *DiagnosticHandler) Report(c *gin.Context) {
	c.JSON(http.StatusOK, h.diagnosticService.Run(c.Request.Context()))
}
