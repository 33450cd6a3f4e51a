// Package handler contains the gin handlers of the HTTP API.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"juris-rag-go/internal/service"
	"juris-rag-go/pkg/log"
)

// respondError writes the error body shared by every endpoint. Validation
// errors are client errors; everything else is a server error.
func respondError(c *gin.Context, op string, err error) {
	if errors.Is(err, service.ErrValidation) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	log.Errorf("[Handler] %s: %v", op, err)
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "internal server error"})
}

func invalidBody(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid request body"})
}
