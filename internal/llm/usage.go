package llm

import (
	"sort"
	"sync"
)

// ProviderUsage is the running total for one provider.
type ProviderUsage struct {
	Provider     string `json:"provider"`
	Calls        int64  `json:"calls"`
	Failures     int64  `json:"failures"`
	InputTokens  int64  `json:"inputTokens"`
	OutputTokens int64  `json:"outputTokens"`
}

// UsageTracker counts calls and tokens per provider. Safe for concurrent use.
type UsageTracker struct {
	mu    sync.Mutex
	usage map[string]*ProviderUsage
}

func NewUsageTracker() *UsageTracker {
	return &UsageTracker{usage: make(map[string]*ProviderUsage)}
}

// Record adds one call. Token counts are ignored when failed is set.
func (u *UsageTracker) Record(provider string, inputTokens, outputTokens int64, failed bool) {
	if u == nil {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	p, ok := u.usage[provider]
	if !ok {
		p = &ProviderUsage{Provider: provider}
		u.usage[provider] = p
	}
	p.Calls++
	if failed {
		p.Failures++
		return
	}
	p.InputTokens += inputTokens
	p.OutputTokens += outputTokens
}

// Snapshot returns a copy sorted by provider name.
func (u *UsageTracker) Snapshot() []ProviderUsage {
	if u == nil {
		return nil
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	out := make([]ProviderUsage, 0, len(u.usage))
	for _, p := range u.usage {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out
}
