package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"resumetex/internal/config"
	"resumetex/internal/latex"
	"resumetex/internal/logging"
	"resumetex/internal/renderer"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := logging.InitializeLogging(cfg); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.CloseLogging()
	logger := logging.GetGlobalLogger()

	// the renderer is the remote backend, so it always typesets in-process
	cfg.LaTeX.RendererURL = ""
	cfg.LaTeX.LocalOnly = true
	if os.Geteuid() == 0 {
		cfg.LaTeX.Sandbox = true
	}
	compiler := latex.NewCompilerFromConfig(cfg)

	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Renderer.Port),
		Handler: renderer.NewHandler(compiler, renderer.Options{
			MaxURIBytes:  cfg.Renderer.MaxURIBytes,
			MaxBodyBytes: cfg.Renderer.MaxBodyBytes,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.LaTeX.Timeout + 10*time.Second,
		// room for an oversized request line to reach the 414 handler
		MaxHeaderBytes:    4*cfg.Renderer.MaxURIBytes + 8192,
	}

	go func() {
		logger.Info("pdf-renderer listening", map[string]interface{}{
			"address": srv.Addr,
			"engine":  cfg.LaTeX.Engine,
			"sandbox": cfg.LaTeX.Sandbox,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server error", map[string]interface{}{"error": err.Error()})
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Shutdown failed", map[string]interface{}{"error": err.Error()})
	}
}
