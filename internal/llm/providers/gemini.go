package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"resumetex/internal/config"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiProvider calls Google's Gemini API with an API key. A client is
// created per call; the SDK client holds a gRPC connection that is not
// worth keeping between multi-second generations.
type GeminiProvider struct {
	config *config.Config
	model  string
	opts   []option.ClientOption
}

func NewGeminiProvider(cfg *config.Config, opts ...option.ClientOption) *GeminiProvider {
	model := cfg.LLM.Model
	if model == "" || strings.HasPrefix(model, "claude") || strings.HasPrefix(model, "gpt") {
		model = defaultGeminiModel
	}
	clientOpts := []option.ClientOption{option.WithAPIKey(cfg.LLM.APIKey)}
	if cfg.LLM.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(cfg.LLM.BaseURL))
	}
	return &GeminiProvider{
		config: cfg,
		model:  model,
		opts:   append(clientOpts, opts...),
	}
}

func (gp *GeminiProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	client, err := genai.NewClient(ctx, gp.opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(gp.model)
	model.SetTemperature(gp.config.LLM.Temperature)
	model.SetMaxOutputTokens(int32(maxTokens(req, gp.config.LLM.MaxTokens)))
	if req.System != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.System)},
		}
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.User))
	if err != nil {
		return nil, fmt.Errorf("Gemini API call failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("empty response from Gemini API")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("unexpected response format from Gemini API")
	}

	out := &Response{Text: text.String()}
	if resp.UsageMetadata != nil {
		out.InputTokens = int64(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int64(resp.UsageMetadata.CandidatesTokenCount)
	}
	return out, nil
}

// IsHealthy only checks configuration; a probe call would bill tokens.
func (gp *GeminiProvider) IsHealthy(context.Context) error {
	if gp.config.LLM.APIKey == "" {
		return fmt.Errorf("Gemini API key not configured - set LLM_API_KEY environment variable")
	}
	return nil
}

func (gp *GeminiProvider) GetProviderName() string {
	return "gemini"
}
