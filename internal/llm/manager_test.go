package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"resumetex/internal/config"
	"resumetex/internal/llm/providers"
)

type fakeProvider struct {
	reqs []providers.Request
	resp *providers.Response
	err  error
	wait time.Duration
}

func (f *fakeProvider) Complete(ctx context.Context, req providers.Request) (*providers.Response, error) {
	f.reqs = append(f.reqs, req)
	if f.wait > 0 {
		select {
		case <-time.After(f.wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeProvider) IsHealthy(context.Context) error { return f.err }
func (f *fakeProvider) GetProviderName() string         { return "fake" }

func TestManagerGenerate(t *testing.T) {
	cfg := config.Defaults()
	fake := &fakeProvider{resp: &providers.Response{Text: "```latex\n\\documentclass{article}\n```", InputTokens: 100, OutputTokens: 40}}
	m := NewManagerWithProvider(cfg, fake, nil)

	jd := "<main><p>Platform engineer building Kubernetes operators in Go for a fintech.</p></main>"
	out, err := m.Generate(context.Background(), jd, "Jane Doe, 8 years of Go")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "documentclass") {
		t.Errorf("raw response not returned: %q", out)
	}

	if len(fake.reqs) != 1 {
		t.Fatalf("provider called %d times", len(fake.reqs))
	}
	req := fake.reqs[0]
	if strings.Contains(req.User, "<main>") || !strings.Contains(req.User, "Platform engineer building Kubernetes") {
		t.Error("job description was not normalized before prompting")
	}
	if !strings.Contains(req.User, `\documentclass[10pt, letterpaper]{article}`) {
		t.Error("reference skeleton missing from prompt")
	}
	if !strings.Contains(req.System, "2 pages") {
		t.Errorf("system prompt does not carry the page budget: %q", req.System)
	}

	usage := m.Usage().Snapshot()
	if len(usage) != 1 || usage[0].Calls != 1 || usage[0].InputTokens != 100 || usage[0].OutputTokens != 40 {
		t.Errorf("usage = %+v", usage)
	}
}

func TestManagerCompress(t *testing.T) {
	fake := &fakeProvider{resp: &providers.Response{Text: "short"}}
	m := NewManagerWithProvider(config.Defaults(), fake, nil)

	if _, err := m.Compress(context.Background(), "DOC", 3, 2); err != nil {
		t.Fatal(err)
	}
	req := fake.reqs[0]
	if !strings.Contains(req.User, "renders to 3 pages") || !strings.Contains(req.User, "at most 2") || !strings.HasSuffix(req.User, "DOC") {
		t.Errorf("compress prompt = %q", req.User)
	}
	if !strings.Contains(req.System, "Only shorten content") {
		t.Errorf("compress system = %q", req.System)
	}
}

func TestManagerRecordsFailures(t *testing.T) {
	fake := &fakeProvider{err: errors.New("429 rate limited")}
	m := NewManagerWithProvider(config.Defaults(), fake, NewUsageTracker())

	if _, err := m.Compress(context.Background(), "DOC", 3, 2); err == nil {
		t.Fatal("provider error swallowed")
	}
	usage := m.Usage().Snapshot()
	if len(usage) != 1 || usage[0].Failures != 1 || usage[0].InputTokens != 0 {
		t.Errorf("usage = %+v", usage)
	}
}

func TestManagerAppliesTimeout(t *testing.T) {
	cfg := config.Defaults()
	cfg.LLM.Timeout = 20 * time.Millisecond
	m := NewManagerWithProvider(cfg, &fakeProvider{wait: time.Second, resp: &providers.Response{Text: "x"}}, nil)

	_, err := m.Compress(context.Background(), "DOC", 3, 2)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestManagerNotReady(t *testing.T) {
	m := NewManager(config.Defaults(), nil)
	if _, err := m.Generate(context.Background(), "jd", "resume"); err == nil {
		t.Error("generate without a provider succeeded")
	}
	if m.IsHealthy() || m.GetProviderName() != "none" {
		t.Error("unstarted manager reports healthy")
	}

	fake := &fakeProvider{err: errors.New("no key")}
	m = NewManagerWithProvider(config.Defaults(), fake, nil)
	if err := m.CheckHealth(context.Background()); err == nil {
		t.Fatal("CheckHealth passed")
	}
	if m.IsHealthy() {
		t.Error("failed health check left the manager healthy")
	}
	if _, err := m.Compress(context.Background(), "d", 3, 2); err == nil || !strings.Contains(err.Error(), "not available") {
		t.Errorf("err = %v", err)
	}
}

func TestFactory(t *testing.T) {
	tests := []struct {
		provider string
		want     string
		wantErr  bool
	}{
		{"claude", "claude", false},
		{"Gemini", "gemini", false},
		{"openai", "openai", false},
		{"llama", "", true},
	}
	for _, tt := range tests {
		cfg := config.Defaults()
		cfg.LLM.Provider = tt.provider
		p, err := NewLLMFactory(cfg).CreateProvider()
		if (err != nil) != tt.wantErr {
			t.Errorf("CreateProvider(%q) error = %v", tt.provider, err)
			continue
		}
		if err == nil && p.GetProviderName() != tt.want {
			t.Errorf("CreateProvider(%q) = %s", tt.provider, p.GetProviderName())
		}
	}
}

func TestUsageTrackerSnapshotSorted(t *testing.T) {
	u := NewUsageTracker()
	u.Record("openai", 1, 2, false)
	u.Record("claude", 3, 4, false)
	u.Record("claude", 5, 6, false)

	got := u.Snapshot()
	if len(got) != 2 || got[0].Provider != "claude" || got[0].Calls != 2 || got[0].InputTokens != 8 || got[0].OutputTokens != 10 {
		t.Errorf("Snapshot = %+v", got)
	}

	var nilTracker *UsageTracker
	nilTracker.Record("x", 1, 1, false)
	if nilTracker.Snapshot() != nil {
		t.Error("nil tracker returned data")
	}
}
