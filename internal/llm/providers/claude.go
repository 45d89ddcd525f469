package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"resumetex/internal/config"
	"resumetex/internal/logging"
	"resumetex/internal/logging/types"
)

// ClaudeProvider implements the LLM provider interface using Anthropic's Claude
type ClaudeProvider struct {
	client anthropic.Client
	config *config.Config
	model  anthropic.Model
	logger types.Logger
}

// NewClaudeProvider creates a new Claude provider instance. Extra options are
// appended after the API key and base URL.
func NewClaudeProvider(cfg *config.Config, opts ...option.RequestOption) *ClaudeProvider {
	clientOpts := []option.RequestOption{option.WithAPIKey(cfg.LLM.APIKey)}
	if cfg.LLM.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.LLM.BaseURL))
	}
	clientOpts = append(clientOpts, opts...)

	model := anthropic.ModelClaude3_7SonnetLatest
	if cfg.LLM.Model != "" {
		model = anthropic.Model(cfg.LLM.Model)
	}

	return &ClaudeProvider{
		client: anthropic.NewClient(clientOpts...),
		config: cfg,
		model:  model,
		logger: logging.GetGlobalLogger(),
	}
}

// Complete sends one user turn with the system instruction.
func (cp *ClaudeProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	startTime := time.Now()

	params := anthropic.MessageNewParams{
		Model:       cp.model,
		MaxTokens:   int64(maxTokens(req, cp.config.LLM.MaxTokens)),
		Temperature: anthropic.Float(float64(cp.config.LLM.Temperature)),
		Messages: []anthropic.MessageParam{{
			Content: []anthropic.ContentBlockParamUnion{{
				OfText: &anthropic.TextBlockParam{Text: req.User},
			}},
			Role: anthropic.MessageParamRoleUser,
		}},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	message, err := cp.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to call Claude API: %w", err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("no text content in Claude response")
	}

	cp.logger.Debug("Claude completion received", map[string]interface{}{
		"model":           string(cp.model),
		"input_tokens":    message.Usage.InputTokens,
		"output_tokens":   message.Usage.OutputTokens,
		"stop_reason":     string(message.StopReason),
		"processing_time": time.Since(startTime).String(),
	})

	return &Response{
		Text:         text.String(),
		InputTokens:  message.Usage.InputTokens,
		OutputTokens: message.Usage.OutputTokens,
	}, nil
}

// IsHealthy checks if the Claude provider is healthy and available
func (cp *ClaudeProvider) IsHealthy(ctx context.Context) error {
	if cp.config.LLM.APIKey == "" {
		return fmt.Errorf("Claude API key not configured - set LLM_API_KEY environment variable")
	}

	_, err := cp.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     cp.model,
		MaxTokens: 16,
		Messages: []anthropic.MessageParam{{
			Content: []anthropic.ContentBlockParamUnion{{
				OfText: &anthropic.TextBlockParam{Text: "Hello"},
			}},
			Role: anthropic.MessageParamRoleUser,
		}},
	})
	if err != nil {
		return fmt.Errorf("Claude API health check failed: %w", err)
	}

	return nil
}

// GetProviderName returns the name of the LLM provider
func (cp *ClaudeProvider) GetProviderName() string {
	return "claude"
}
