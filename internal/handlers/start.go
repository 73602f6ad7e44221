package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/imyashkale/mcserver/internal/config"
	"github.com/imyashkale/mcserver/internal/logger"
	"github.com/imyashkale/mcserver/internal/middleware"
	"github.com/imyashkale/mcserver/internal/models"
	"github.com/imyashkale/mcserver/internal/services"
)

// Activator starts the server and reports its status
type Activator interface {
	Activate(ctx context.Context, req *models.ActivationRequest) (*models.ServerStatusReport, error)
}

// StartHandler handles requests to start the Minecraft server
type StartHandler struct {
	activator Activator
	format    string
}

// NewStartHandler creates a new start handler rendering in format
// (config.StatusFormatText or config.StatusFormatHTML)
func NewStartHandler(activator Activator, format string) *StartHandler {
	return &StartHandler{
		activator: activator,
		format:    format,
	}
}

// Start scales the server up and responds with its current status.
// GET /api/v1/start
func (h *StartHandler) Start(c *gin.Context) {
	req := &models.ActivationRequest{
		RequestID: middleware.RequestIDFrom(c),
		Caller:    middleware.CallerFrom(c),
	}

	report, err := h.activator.Activate(c.Request.Context(), req)
	if err != nil {
		resp := models.ErrorResponse{
			Error:   "activation_failed",
			Message: err.Error(),
		}
		var stepErr *services.StepError
		if errors.As(err, &stepErr) {
			resp.Step = stepErr.Step
		}

		logger.WithFields(map[string]interface{}{
			"request_id": req.RequestID,
			"step":       resp.Step,
			"error":      err.Error(),
		}).Error("Failed to start server")

		c.JSON(http.StatusInternalServerError, resp)
		return
	}

	c.Header("Cache-Control", "no-store")
	if h.format == config.StatusFormatHTML {
		c.HTML(http.StatusOK, StatusTemplateName, report)
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(RenderText(report)))
}
