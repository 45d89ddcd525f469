package llm

import (
	"context"

	"resumetex/internal/llm/providers"
)

// LLMProvider defines the interface for LLM providers
type LLMProvider interface {
	// Complete runs one system + user completion
	Complete(ctx context.Context, req providers.Request) (*providers.Response, error)

	// IsHealthy checks if the LLM provider is healthy and available
	IsHealthy(ctx context.Context) error

	// GetProviderName returns the name of the LLM provider
	GetProviderName() string
}
