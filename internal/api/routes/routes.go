package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"

	"resumetex/internal/api/handlers"
	"resumetex/internal/api/middleware"
	"resumetex/internal/background"
	"resumetex/internal/config"
	"resumetex/internal/grpc/interceptors"
	"resumetex/internal/llm"
)

// Dependencies are the components the HTTP API is served from.
type Dependencies struct {
	Config      *config.Config
	TaskManager background.TaskManager
	Finisher    handlers.Finisher
	Progress    handlers.Subscriber
	LLM         *llm.Manager
	GRPCMetrics *interceptors.MetricsCollector
	CacheName   string
	StoreName   string
	// Readiness checks beyond the task manager, e.g. cache and storage.
	Readiness []handlers.ReadinessCheck
}

// SetupRoutes configures all API routes
func SetupRoutes(e *echo.Echo, deps Dependencies) {
	cfg := deps.Config

	// Global middleware
	e.Use(echomiddleware.Recover())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.CORSConfig())
	e.Use(middleware.RequestValidation(cfg.Renderer.MaxBodyBytes))
	e.Use(middleware.SelectiveTimeoutConfig(cfg.Server.ReadTimeout, compileTimeout(cfg)))

	readiness := append([]handlers.ReadinessCheck{{
		Name: "workers",
		Check: func(context.Context) error {
			if !deps.TaskManager.IsHealthy() {
				return background.ErrNotRunning
			}
			return nil
		},
	}}, deps.Readiness...)

	// Health check routes
	health := e.Group("/health")
	{
		health.GET("", handlers.HealthHandler)
		health.GET("/ready", handlers.ReadinessHandler(readiness...))
		health.GET("/live", handlers.LivenessHandler)
		health.GET("/workers", handlers.WorkerStatsHandler(deps.TaskManager))
	}

	// Status route
	e.GET("/status", handlers.StatusHandler(handlers.StatusSources{
		LLM:         deps.LLM,
		TaskManager: deps.TaskManager,
		GRPCMetrics: deps.GRPCMetrics,
		CacheName:   deps.CacheName,
		StoreName:   deps.StoreName,
	}))

	// API v1 routes
	v1 := e.Group("/api/v1")
	{
		v1.POST("/resume/generate", handlers.GenerateHandler(deps.TaskManager))

		tasks := v1.Group("/tasks")
		{
			tasks.GET("", handlers.ListTasksHandler(deps.TaskManager))
			tasks.GET("/:processId", handlers.TaskStatusHandler(deps.TaskManager))
			tasks.GET("/:processId/artifact", handlers.TaskArtifactHandler(deps.TaskManager))
		}

		v1.GET("/progress/:requestId", handlers.ProgressHandler(deps.Progress, cfg.Progress.Heartbeat))

		latex := v1.Group("/latex")
		{
			latex.POST("/compile", handlers.CompileHandler(deps.Finisher))
			latex.POST("/sanitize", handlers.SanitizeHandler())
		}

		// Proto file serving routes
		proto := v1.Group("/proto")
		{
			proto.GET("/pipeline.proto", handlers.ProtoHandler())
			proto.GET("/metadata", handlers.ProtoMetadataHandler())
		}
	}

	// Root route
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"service": "resumetex",
			"version": "1.0.0",
			"status":  "running",
		})
	})
}

// compileTimeout bounds a compile request: every repair pass of every
// compression round, plus the model call behind each round when the
// request enforces the page budget.
func compileTimeout(cfg *config.Config) time.Duration {
	rounds := cfg.Pipeline.MaxCompressionRounds
	if rounds < 0 {
		rounds = 0
	}
	compiles := cfg.LaTeX.Timeout * time.Duration(cfg.Pipeline.MaxRetries+2)
	return compiles*time.Duration(rounds+1) + cfg.LLM.Timeout*time.Duration(rounds)
}
