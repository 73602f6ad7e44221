package router

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/imyashkale/mcserver/internal/config"
	"github.com/imyashkale/mcserver/internal/handlers"
	"github.com/imyashkale/mcserver/internal/logger"
	"github.com/imyashkale/mcserver/internal/middleware"
	"github.com/imyashkale/mcserver/internal/models"
)

// Setup configures and returns the application router.
// verifier may be nil; authenticated routes then trust the token claims
// without checking the signature.
func Setup(
	cfg *config.Config,
	healthHandler *handlers.HealthHandler,
	startHandler *handlers.StartHandler,
	verifier *middleware.TokenVerifier,
) *gin.Engine {

	router := gin.New()
	router.Use(gin.CustomRecovery(recovery))
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(cfg.CORSAllowedOrigin))

	if cfg.StatusFormat == config.StatusFormatHTML {
		router.SetHTMLTemplate(handlers.StatusTemplate())
	}

	start := []gin.HandlerFunc{startHandler.Start}
	if cfg.RequireAuth() {
		start = append([]gin.HandlerFunc{middleware.Authentication(verifier)}, start...)
	}

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", healthHandler.Check)
		v1.GET("/start", start...)
	}

	// bare path used by the API gateway integration
	router.GET("/start", start...)

	return router
}

// recovery turns a panic into the same JSON error body as any other failure
func recovery(c *gin.Context, recovered interface{}) {
	logger.WithFields(map[string]interface{}{
		"request_id": middleware.RequestIDFrom(c),
		"panic":      fmt.Sprint(recovered),
	}).Error("Recovered from panic")

	c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse{
		Error:   "internal_error",
		Message: fmt.Sprint(recovered),
	})
}
