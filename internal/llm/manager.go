package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"resumetex/internal/config"
	"resumetex/internal/latex"
	"resumetex/internal/llm/processors"
	"resumetex/internal/llm/providers"
	"resumetex/internal/logging"
	"resumetex/internal/logging/types"
)

// Manager owns the configured provider and implements the pipeline's
// generator: it builds prompts, applies the call timeout and records usage.
type Manager struct {
	config     *config.Config
	factory    *LLMFactory
	provider   LLMProvider
	usage      *UsageTracker
	normalizer *processors.JobTextNormalizer
	logger     types.Logger
	mu         sync.RWMutex
	healthy    bool
}

// NewManager creates a new LLM manager instance
func NewManager(cfg *config.Config, usage *UsageTracker) *Manager {
	if usage == nil {
		usage = NewUsageTracker()
	}
	return &Manager{
		config:     cfg,
		factory:    NewLLMFactory(cfg),
		usage:      usage,
		normalizer: processors.NewJobTextNormalizer(),
		logger:     logging.GetGlobalLogger(),
	}
}

// NewManagerWithProvider wires an already constructed provider and marks it
// healthy.
func NewManagerWithProvider(cfg *config.Config, provider LLMProvider, usage *UsageTracker) *Manager {
	m := NewManager(cfg, usage)
	m.provider = provider
	m.healthy = true
	return m
}

// Start initializes the LLM manager and creates the provider
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Info("Starting LLM manager", map[string]interface{}{
		"provider": m.config.LLM.Provider,
	})

	provider, err := m.factory.CreateProvider()
	if err != nil {
		return fmt.Errorf("failed to create LLM provider: %w", err)
	}
	m.provider = provider

	ctx, cancel := context.WithTimeout(context.Background(), m.config.LLM.Timeout)
	defer cancel()

	if err := m.provider.IsHealthy(ctx); err != nil {
		// the server still starts; compile and sanitize do not need a model
		m.logger.Warn("LLM provider health check failed - generation will be disabled", map[string]interface{}{
			"provider": m.provider.GetProviderName(),
			"error":    err.Error(),
		})
		m.healthy = false
	} else {
		m.healthy = true
		m.logger.Info("LLM manager started successfully", map[string]interface{}{
			"provider": m.provider.GetProviderName(),
		})
	}

	return nil
}

// Stop shuts down the LLM manager
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Info("Stopping LLM manager")
	m.provider = nil
	m.healthy = false
	return nil
}

// Generate asks the model for a tailored document. The job description is
// normalized first; the response is returned raw for the caller to extract.
func (m *Manager) Generate(ctx context.Context, jobDescription, masterResume string) (string, error) {
	jd, err := m.normalizer.Normalize(jobDescription)
	if err != nil {
		return "", fmt.Errorf("normalize job description: %w", err)
	}
	skeleton, err := latex.RenderSkeleton(m.config.LLM.Theme, latex.SkeletonData{})
	if err != nil {
		return "", err
	}
	return m.complete(ctx, "generate", BuildGenerateRequest(jd, masterResume, skeleton, m.config.Pipeline.PageBudget))
}

// Compress asks the model to shorten document to pageBudget pages.
func (m *Manager) Compress(ctx context.Context, document string, pageCount, pageBudget int) (string, error) {
	return m.complete(ctx, "compress", BuildCompressRequest(document, pageCount, pageBudget))
}

func (m *Manager) complete(ctx context.Context, op string, req providers.Request) (string, error) {
	m.mu.RLock()
	provider := m.provider
	healthy := m.healthy
	m.mu.RUnlock()

	if provider == nil {
		return "", fmt.Errorf("LLM manager not started or provider not available")
	}
	if !healthy {
		return "", fmt.Errorf("LLM provider is not available - check API key configuration (set LLM_API_KEY environment variable)")
	}

	if m.config.LLM.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.LLM.Timeout)
		defer cancel()
	}

	logger := m.logger.WithContext(ctx)
	start := time.Now()
	resp, err := provider.Complete(ctx, req)
	if err != nil {
		m.usage.Record(provider.GetProviderName(), 0, 0, true)
		logger.Error("LLM call failed", map[string]interface{}{
			"op":       op,
			"provider": provider.GetProviderName(),
			"duration": time.Since(start).String(),
			"error":    err.Error(),
		})
		return "", err
	}

	m.usage.Record(provider.GetProviderName(), resp.InputTokens, resp.OutputTokens, false)
	logger.Info("LLM call completed", map[string]interface{}{
		"op":            op,
		"provider":      provider.GetProviderName(),
		"duration":      time.Since(start).String(),
		"input_tokens":  resp.InputTokens,
		"output_tokens": resp.OutputTokens,
		"prompt_tokens": processors.EstimateTokens(req.User),
	})
	return resp.Text, nil
}

// Usage returns the shared usage tracker.
func (m *Manager) Usage() *UsageTracker { return m.usage }

// IsHealthy checks if the LLM manager and provider are healthy
func (m *Manager) IsHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.healthy && m.provider != nil
}

// GetProviderName returns the name of the current LLM provider
func (m *Manager) GetProviderName() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.provider != nil {
		return m.provider.GetProviderName()
	}
	return "none"
}

// CheckHealth performs a health check on the LLM provider
func (m *Manager) CheckHealth(ctx context.Context) error {
	m.mu.RLock()
	provider := m.provider
	m.mu.RUnlock()

	if provider == nil {
		return fmt.Errorf("LLM provider not available")
	}

	err := provider.IsHealthy(ctx)

	m.mu.Lock()
	m.healthy = (err == nil)
	m.mu.Unlock()

	return err
}
