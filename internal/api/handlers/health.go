package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"resumetex/internal/background"
	"resumetex/internal/grpc/interceptors"
	"resumetex/internal/llm"
	"resumetex/internal/logging"
	"resumetex/pkg/models"
)

var startTime = time.Now()

const version = "1.0.0"

// ReadinessCheck probes one dependency; a nil error means ready.
type ReadinessCheck struct {
	Name     string
	Check    func(ctx context.Context) error
	Optional bool
}

// HealthHandler handles health check requests
func HealthHandler(c echo.Context) error {
	logging.GetGlobalLogger().Debug("Health check requested", map[string]interface{}{"request_id": requestID(c)})

	return c.JSON(http.StatusOK, models.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   version,
		Uptime:    time.Since(startTime),
		Checks: map[string]string{
			"api": "ok",
		},
	})
}

// ReadinessHandler runs every check with a short deadline. A failing
// required check makes the service not ready; optional ones only degrade it.
func ReadinessHandler(checks ...ReadinessCheck) echo.HandlerFunc {
	return func(c echo.Context) error {
		logger := logging.GetGlobalLogger()
		ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
		defer cancel()

		results := map[string]string{"api": "ok"}
		ready, degraded := true, false
		for _, check := range checks {
			if err := check.Check(ctx); err != nil {
				results[check.Name] = "error: " + err.Error()
				if check.Optional {
					degraded = true
				} else {
					ready = false
				}
				logger.Warn("Readiness check failed", map[string]interface{}{
					"request_id": requestID(c),
					"check":      check.Name,
					"error":      err.Error(),
				})
				continue
			}
			results[check.Name] = "ok"
		}

		response := models.HealthResponse{
			Status:    "ready",
			Timestamp: time.Now(),
			Version:   version,
			Uptime:    time.Since(startTime),
			Checks:    results,
		}
		if !ready {
			response.Status = "not_ready"
			return c.JSON(http.StatusServiceUnavailable, response)
		}
		if degraded {
			response.Status = "degraded"
		}
		return c.JSON(http.StatusOK, response)
	}
}

// LivenessHandler handles liveness probe requests
func LivenessHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, models.HealthResponse{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   version,
		Uptime:    time.Since(startTime),
	})
}

// StatusSources are the components the status endpoint reports on.
type StatusSources struct {
	LLM         *llm.Manager
	TaskManager background.TaskManager
	GRPCMetrics *interceptors.MetricsCollector
	CacheName   string
	StoreName   string
}

// StatusHandler provides detailed service status
func StatusHandler(src StatusSources) echo.HandlerFunc {
	return func(c echo.Context) error {
		logging.GetGlobalLogger().Debug("Status check requested", map[string]interface{}{"request_id": requestID(c)})

		checks := map[string]string{"api": "operational"}
		response := models.StatusResponse{
			HealthResponse: models.HealthResponse{
				Status:    "operational",
				Timestamp: time.Now(),
				Version:   version,
				Uptime:    time.Since(startTime),
				Checks:    checks,
			},
			Cache:     src.CacheName,
			Artifacts: src.StoreName,
		}

		if src.LLM != nil {
			response.LLMProvider = src.LLM.GetProviderName()
			response.LLMUsage = src.LLM.Usage().Snapshot()
			checks["llm"] = healthWord(src.LLM.IsHealthy())
		}
		if src.TaskManager != nil {
			response.Workers = src.TaskManager.Stats()
			checks["workers"] = healthWord(src.TaskManager.IsHealthy())
		}
		if src.GRPCMetrics != nil {
			response.GRPC = src.GRPCMetrics.Snapshot()
		}
		for _, v := range checks {
			if v != "operational" {
				response.Status = "degraded"
			}
		}

		return c.JSON(http.StatusOK, response)
	}
}

func healthWord(ok bool) string {
	if ok {
		return "operational"
	}
	return "unavailable"
}
