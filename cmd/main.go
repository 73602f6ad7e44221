package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/gin-gonic/gin"
	"github.com/imyashkale/mcserver/internal/config"
	"github.com/imyashkale/mcserver/internal/handlers"
	"github.com/imyashkale/mcserver/internal/logger"
	"github.com/imyashkale/mcserver/internal/metrics"
	"github.com/imyashkale/mcserver/internal/middleware"
	"github.com/imyashkale/mcserver/internal/router"
	"github.com/imyashkale/mcserver/internal/services"
)

func main() {

	// cancelled on return, stopping background JWKS refreshes
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load application configuration, panics if a required value is missing
	cfg := config.New()

	logger.Init(cfg.LogLevel, cfg.LogFormat)
	logger.WithFields(map[string]interface{}{
		"asg":           cfg.AutoScalingGroup,
		"cluster":       cfg.Cluster,
		"service":       cfg.Service,
		"bucket":        cfg.Bucket,
		"status_format": cfg.StatusFormat,
	}).Info("Configuration loaded successfully")

	gin.SetMode(gin.ReleaseMode)

	// Load AWS configuration. Failed calls are reported to the caller, who
	// polls the endpoint anyway, so the SDK must not retry.
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRetryMaxAttempts(1),
	}
	if cfg.AWSRegion != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.AWSRegion))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		logger.Fatalf("Failed to load AWS configuration: %v", err)
	}
	logger.Debugf("AWS configuration loaded for region %q", awsCfg.Region)

	clients := services.NewClients(awsCfg)

	recorder, err := metrics.NewRecorder(cfg.MetricsSink, awsCfg, os.Stdout)
	if err != nil {
		logger.Fatalf("Failed to initialize metrics: %v", err)
	}

	// Initialize services
	computeService := services.NewComputeService(clients.AutoScaling, clients.EC2, cfg.AutoScalingGroup)
	containerService := services.NewContainerService(clients.ECS, cfg.Cluster, cfg.Service)
	modService := services.NewModService(clients.S3, clients.Presigner, cfg.Bucket, cfg.ModLinkTTL)
	activationService := services.NewActivationService(computeService, containerService, modService, recorder, services.ActivationOptions{
		DNSName:       cfg.DNSName(),
		SignModLinks:  cfg.SignModLinks(),
		ParallelReads: cfg.ParallelStatusReads,
	})
	logger.Info("Services initialized")

	var verifier *middleware.TokenVerifier
	if cfg.RequireAuth() {
		if cfg.JWTIssuer != "" {
			verifier, err = middleware.NewTokenVerifier(ctx, cfg.JWTIssuer, cfg.JWTAudience)
			if err != nil {
				logger.Fatalf("Failed to initialize token verification: %v", err)
			}
			logger.WithField("issuer", cfg.JWTIssuer).Info("Token verification enabled")
		} else {
			logger.Warnf("JWT_ISSUER not set, token signatures are expected to be checked upstream")
		}
	}

	// Setup router
	r := router.Setup(
		cfg,
		handlers.NewHealthHandler(cfg.StatusFormat),
		handlers.NewStartHandler(activationService, cfg.StatusFormat),
		verifier,
	)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Setup graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		logger.Info("Shutting down server gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("Graceful shutdown failed: %v", err)
		}
	}()

	// Start server
	logger.Infof("Starting server on :%s", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("Failed to start server: %v", err)
	}
	logger.Info("Server stopped")
}
