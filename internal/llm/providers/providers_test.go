package providers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"

	"resumetex/internal/config"
)

func TestOpenAIComplete(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o",
			"choices":[{"index":0,"message":{"role":"assistant","content":"\\documentclass{article}"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":11,"completion_tokens":7,"total_tokens":18}}`)
	}))
	defer srv.Close()

	cfg := config.Defaults()
	cfg.LLM.APIKey = "sk-test"
	cfg.LLM.BaseURL = srv.URL + "/v1/"
	cfg.LLM.Model = "gpt-4o-mini"

	p := NewOpenAIProvider(cfg)
	resp, err := p.Complete(context.Background(), Request{System: "sys", User: "hello"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Text != `\documentclass{article}` || resp.InputTokens != 11 || resp.OutputTokens != 7 {
		t.Errorf("resp = %+v", resp)
	}
	if got.Model != "gpt-4o-mini" || len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "hello" {
		t.Errorf("request = %+v", got)
	}
}

func TestOpenAIModelDefault(t *testing.T) {
	cfg := config.Defaults()
	if p := NewOpenAIProvider(cfg); p.model == cfg.LLM.Model {
		t.Errorf("claude model name passed to openai: %s", p.model)
	}
}

func TestClaudeComplete(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-7-sonnet-latest",
			"content":[{"type":"text","text":"part one "},{"type":"text","text":"part two"}],
			"stop_reason":"end_turn","stop_sequence":null,
			"usage":{"input_tokens":21,"output_tokens":9}}`)
	}))
	defer srv.Close()

	cfg := config.Defaults()
	cfg.LLM.APIKey = "key"
	cfg.LLM.BaseURL = srv.URL

	p := NewClaudeProvider(cfg, option.WithMaxRetries(0))
	resp, err := p.Complete(context.Background(), Request{System: "be brief", User: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Text != "part one part two" || resp.InputTokens != 21 || resp.OutputTokens != 9 {
		t.Errorf("resp = %+v", resp)
	}
	if got["model"] != "claude-3-7-sonnet-latest" {
		t.Errorf("model = %v", got["model"])
	}
	if _, ok := got["system"]; !ok {
		t.Error("system prompt not sent")
	}
}

func TestClaudeHealthRequiresKey(t *testing.T) {
	cfg := config.Defaults()
	if err := NewClaudeProvider(cfg).IsHealthy(context.Background()); err == nil {
		t.Error("missing key passed health check")
	}
}

func TestGeminiHealthRequiresKey(t *testing.T) {
	cfg := config.Defaults()
	p := NewGeminiProvider(cfg)
	if err := p.IsHealthy(context.Background()); err == nil {
		t.Error("missing key passed health check")
	}
	if p.model != defaultGeminiModel {
		t.Errorf("model = %s", p.model)
	}
}

func TestMaxTokens(t *testing.T) {
	if got := maxTokens(Request{MaxTokens: 10}, 99); got != 10 {
		t.Errorf("explicit = %d", got)
	}
	if got := maxTokens(Request{}, 99); got != 99 {
		t.Errorf("fallback = %d", got)
	}
	if got := maxTokens(Request{}, 0); got != 8192 {
		t.Errorf("default = %d", got)
	}
}
