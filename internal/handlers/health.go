package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	format string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(format string) *HealthHandler {
	return &HealthHandler{format: format}
}

// Check reports that the process is serving. It does not call AWS.
func (h *HealthHandler) Check(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "healthy",
		"timestamp":     time.Now().UTC(),
		"service":       "mcserver",
		"status_format": h.format,
	})
}
