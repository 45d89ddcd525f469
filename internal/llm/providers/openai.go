package providers

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"resumetex/internal/config"
)

// OpenAIProvider talks to the chat completions API, or to any server
// compatible with it when llm.base_url is set.
type OpenAIProvider struct {
	client *openai.Client
	config *config.Config
	model  string
}

func NewOpenAIProvider(cfg *config.Config) *OpenAIProvider {
	clientConfig := openai.DefaultConfig(cfg.LLM.APIKey)
	if cfg.LLM.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.LLM.BaseURL, "/")
	}
	model := cfg.LLM.Model
	if model == "" || strings.HasPrefix(model, "claude") || strings.HasPrefix(model, "gemini") {
		model = openai.GPT4o
	}
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
		model:  model,
	}
}

func (op *OpenAIProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.User,
	})

	resp, err := op.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       op.model,
		Messages:    messages,
		MaxTokens:   maxTokens(req, op.config.LLM.MaxTokens),
		Temperature: op.config.LLM.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("empty response from OpenAI API")
	}

	return &Response{
		Text:         resp.Choices[0].Message.Content,
		InputTokens:  int64(resp.Usage.PromptTokens),
		OutputTokens: int64(resp.Usage.CompletionTokens),
	}, nil
}

func (op *OpenAIProvider) IsHealthy(ctx context.Context) error {
	if op.config.LLM.APIKey == "" && op.config.LLM.BaseURL == "" {
		return fmt.Errorf("OpenAI API key not configured - set LLM_API_KEY environment variable")
	}
	if _, err := op.client.ListModels(ctx); err != nil {
		return fmt.Errorf("OpenAI API health check failed: %w", err)
	}
	return nil
}

func (op *OpenAIProvider) GetProviderName() string {
	return "openai"
}
