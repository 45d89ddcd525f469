package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"resumetex/internal/api/handlers"
	"resumetex/internal/api/routes"
	"resumetex/internal/artifacts"
	"resumetex/internal/background"
	"resumetex/internal/cache"
	"resumetex/internal/callback"
	"resumetex/internal/config"
	"resumetex/internal/grpc/interceptors"
	"resumetex/internal/grpc/server"
	"resumetex/internal/latex"
	"resumetex/internal/llm"
	"resumetex/internal/logging"
	"resumetex/internal/mux"
	"resumetex/internal/pipeline"
	"resumetex/internal/progress"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	// Load configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logging.InitializeLogging(cfg); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.CloseLogging()

	logger := logging.GetGlobalLogger()
	logger.Info("Starting resumetex", map[string]interface{}{
		"config": configPath,
	})

	ctx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	// Initialize LLM manager
	llmManager := llm.NewManager(cfg, llm.NewUsageTracker())
	if err := llmManager.Start(); err != nil {
		logger.Fatal("Failed to start LLM manager", map[string]interface{}{"error": err.Error()})
	}

	hub := progress.NewHub(progress.HubConfig{
		History:   cfg.Progress.History,
		Retention: cfg.Progress.Retention,
	})
	hubStop := make(chan struct{})
	go hub.Run(cfg.Progress.SweepInterval, hubStop)

	compiler := latex.NewCompilerFromConfig(cfg)
	pipe := pipeline.New(pipeline.ConfigFrom(cfg), llmManager, compiler, hub, nil)

	resultCache, err := cache.New(cfg)
	if err != nil {
		logger.Fatal("Failed to create result cache", map[string]interface{}{"error": err.Error()})
	}
	defer resultCache.Close()

	store, err := artifacts.New(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to create artifact store", map[string]interface{}{"error": err.Error()})
	}

	completion := background.NewTaskCompletionLogger()
	if cfg.Callback.Enabled {
		client, err := callback.NewClientFromConfig(cfg)
		if err != nil {
			logger.Fatal("Failed to create callback client", map[string]interface{}{"error": err.Error()})
		}
		defer client.Close()
		completion = background.NewTaskCompletionLoggerWithCallback(client, cfg.Callback.Timeout)
		logger.Info("Completion callbacks enabled", map[string]interface{}{
			"server_address": cfg.Callback.ServerAddress,
		})
	}

	// Initialize background task manager
	generator := background.NewGenerator(pipe, resultCache, store, hub)
	taskManager := background.NewTaskManager(cfg, generator, completion)
	if err := taskManager.Start(ctx); err != nil {
		logger.Fatal("Failed to start task manager", map[string]interface{}{"error": err.Error()})
	}

	metrics := interceptors.NewMetricsCollector()
	go interceptors.StartMetricsReporting(ctx, metrics, 5*time.Minute)
	grpcServer := server.NewServer(cfg, taskManager, llmManager, metrics)

	e := echo.New()
	e.HideBanner = true
	routes.SetupRoutes(e, routes.Dependencies{
		Config:      cfg,
		TaskManager: taskManager,
		Finisher:    pipe,
		Progress:    hub,
		LLM:         llmManager,
		GRPCMetrics: metrics,
		CacheName:   resultCache.Name(),
		StoreName:   store.Name(),
		Readiness: []handlers.ReadinessCheck{
			{Name: "cache", Check: resultCache.Ping, Optional: true},
			{Name: "artifacts", Check: store.Health, Optional: true},
			{Name: "llm", Check: llmManager.CheckHealth, Optional: true},
		},
	})

	multiplexer := mux.NewMultiplexer(cfg, grpcServer, e)

	address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	if err := multiplexer.Start(address); err != nil {
		logger.Fatal("Server failed to start", map[string]interface{}{"error": err.Error()})
	}
	logger.Info("Server started", map[string]interface{}{
		"address":      address,
		"llm_provider": llmManager.GetProviderName(),
		"cache":        resultCache.Name(),
		"artifacts":    store.Name(),
	})

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// stop accepting work before draining the workers
	if err := multiplexer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping listeners", map[string]interface{}{"error": err.Error()})
	}

	logger.Info("Stopping background task manager...")
	if err := taskManager.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping task manager", map[string]interface{}{"error": err.Error()})
	}

	close(hubStop)

	logger.Info("Stopping LLM manager...")
	if err := llmManager.Stop(); err != nil {
		logger.Error("Error stopping LLM manager", map[string]interface{}{"error": err.Error()})
	}

	logger.Info("Server shutdown complete")
}
