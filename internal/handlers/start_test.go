package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/imyashkale/mcserver/internal/config"
	"github.com/imyashkale/mcserver/internal/middleware"
	"github.com/imyashkale/mcserver/internal/models"
	"github.com/imyashkale/mcserver/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MockActivator returns a canned report or error
type MockActivator struct {
	activateFunc func(ctx context.Context, req *models.ActivationRequest) (*models.ServerStatusReport, error)
	requests     []*models.ActivationRequest
}

func (m *MockActivator) Activate(ctx context.Context, req *models.ActivationRequest) (*models.ServerStatusReport, error) {
	m.requests = append(m.requests, req)
	return m.activateFunc(ctx, req)
}

func runningReport() *models.ServerStatusReport {
	return &models.ServerStatusReport{
		DNSName: "blocky.duckdns.org",
		Instance: models.InstanceState{
			InstanceID:     "i-0abc",
			LifecycleState: "InService",
			PublicIP:       "3.120.1.2",
		},
		Service:     models.ServiceCounts{Desired: 1, Pending: 0, Running: 1},
		Mods:        models.ModListing{},
		GeneratedAt: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
	}
}

func serve(h *StartHandler, withTemplate bool, caller *models.Caller) *httptest.ResponseRecorder {
	r := gin.New()
	if withTemplate {
		r.SetHTMLTemplate(StatusTemplate())
	}
	r.GET("/start", middleware.RequestID(), func(c *gin.Context) {
		if caller != nil {
			c.Set(middleware.CallerKey, caller)
		}
		c.Next()
	}, h.Start)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/start", nil))
	return w
}

func TestStart_TextRunningServer(t *testing.T) {
	activator := &MockActivator{activateFunc: func(context.Context, *models.ActivationRequest) (*models.ServerStatusReport, error) {
		return runningReport(), nil
	}}

	w := serve(NewStartHandler(activator, config.StatusFormatText), false, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	body := w.Body.String()
	assert.Contains(t, body, "blocky.duckdns.org")
	assert.Contains(t, body, "3.120.1.2")
	assert.Contains(t, body, "Pending: 0, Running: 1")
	assert.Contains(t, body, "Mods used: none")

	require.Len(t, activator.requests, 1)
	assert.NotEmpty(t, activator.requests[0].RequestID)
	assert.Nil(t, activator.requests[0].Caller)
}

func TestStart_PassesCaller(t *testing.T) {
	activator := &MockActivator{activateFunc: func(context.Context, *models.ActivationRequest) (*models.ServerStatusReport, error) {
		return runningReport(), nil
	}}
	caller := &models.Caller{Subject: "abc-123", Email: "steve@example.com"}

	w := serve(NewStartHandler(activator, config.StatusFormatText), false, caller)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Same(t, caller, activator.requests[0].Caller)
}

func TestStart_Failure(t *testing.T) {
	for _, step := range []string{
		services.StepScaleCompute,
		services.StepScaleService,
		services.StepListMods,
		services.StepDescribeCompute,
		services.StepDescribeService,
	} {
		t.Run(step, func(t *testing.T) {
			cause := errors.New("dial tcp: i/o timeout")
			activator := &MockActivator{activateFunc: func(context.Context, *models.ActivationRequest) (*models.ServerStatusReport, error) {
				return nil, &services.StepError{Step: step, Err: fmt.Errorf("failed to call AWS: %w", cause)}
			}}

			for _, format := range []string{config.StatusFormatText, config.StatusFormatHTML} {
				w := serve(NewStartHandler(activator, format), true, nil)

				require.Equal(t, http.StatusInternalServerError, w.Code)
				assert.Contains(t, w.Header().Get("Content-Type"), "application/json")

				var resp models.ErrorResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, "activation_failed", resp.Error)
				assert.Equal(t, step, resp.Step)
				assert.Contains(t, resp.Message, "dial tcp: i/o timeout")
				assert.NotContains(t, w.Body.String(), "Pending:")
			}
		})
	}
}

func TestStart_UnclassifiedFailure(t *testing.T) {
	activator := &MockActivator{activateFunc: func(context.Context, *models.ActivationRequest) (*models.ServerStatusReport, error) {
		return nil, context.DeadlineExceeded
	}}

	w := serve(NewStartHandler(activator, config.StatusFormatText), false, nil)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Step)
	assert.Equal(t, context.DeadlineExceeded.Error(), resp.Message)
}

func TestStart_HTML(t *testing.T) {
	expires := time.Date(2026, 10, 19, 12, 5, 0, 0, time.UTC)
	report := runningReport()
	report.Mods = models.ModListing{
		Server: []models.ModFile{{Name: "a.jar", Key: "mods/server/a.jar"}, {Name: "b.jar", Key: "mods/server/b.jar"}},
		Client: []models.ModFile{{
			Name:        "c.jar",
			Key:         "mods/client/c.jar",
			DownloadURL: "https://mc-world.s3.amazonaws.com/mods/client/c.jar?X-Amz-Expires=300&X-Amz-Signature=abc",
			ExpiresAt:   &expires,
		}},
	}
	activator := &MockActivator{activateFunc: func(context.Context, *models.ActivationRequest) (*models.ServerStatusReport, error) {
		return report, nil
	}}

	w := serve(NewStartHandler(activator, config.StatusFormatHTML), true, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	body := w.Body.String()
	assert.Contains(t, body, "blocky.duckdns.org")
	assert.Contains(t, body, "3.120.1.2")
	assert.Contains(t, body, "Pending: 0, Running: 1")
	assert.Contains(t, body, "<li>a.jar</li>")
	assert.Contains(t, body, "<li>b.jar</li>")
	assert.Contains(t, body, `href="https://mc-world.s3.amazonaws.com/mods/client/c.jar?X-Amz-Expires=300&amp;X-Amz-Signature=abc"`)
	assert.Contains(t, body, "link expires 12:05 UTC")
	assert.NotContains(t, body, `http-equiv="refresh"`, "ready servers stop auto refreshing")
}

func TestStart_HTMLWaiting(t *testing.T) {
	activator := &MockActivator{activateFunc: func(context.Context, *models.ActivationRequest) (*models.ServerStatusReport, error) {
		return &models.ServerStatusReport{
			DNSName:  "blocky.duckdns.org",
			Instance: models.InstanceState{LifecycleState: models.WaitingForInstance, Waiting: true},
			Service:  models.ServiceCounts{Desired: 1},
		}, nil
	}}

	w := serve(NewStartHandler(activator, config.StatusFormatHTML), true, nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Waiting for EC2 instance...")
	assert.Contains(t, body, "not assigned yet")
	assert.Contains(t, body, "No mods installed.")
	assert.Contains(t, body, `http-equiv="refresh"`)
}
