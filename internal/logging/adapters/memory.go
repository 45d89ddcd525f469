package adapters

import (
	"sync"

	"resumetex/internal/logging/types"
)

// MemoryAdapter keeps the most recent entries in memory. Tests use it to
// assert on log output.
type MemoryAdapter struct {
	name    string
	limit   int
	entries []types.LogEntry
	mu      sync.Mutex
}

// NewMemoryAdapter keeps at most limit entries; limit <= 0 means 1000.
func NewMemoryAdapter(name string, limit int) *MemoryAdapter {
	if limit <= 0 {
		limit = 1000
	}
	return &MemoryAdapter{name: name, limit: limit}
}

func (a *MemoryAdapter) Write(entry *types.LogEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	e := *entry
	e.Context = nil
	if len(a.entries) == a.limit {
		copy(a.entries, a.entries[1:])
		a.entries = a.entries[:len(a.entries)-1]
	}
	a.entries = append(a.entries, e)
	return nil
}

// Entries returns a snapshot of the captured entries, oldest first.
func (a *MemoryAdapter) Entries() []types.LogEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]types.LogEntry, len(a.entries))
	copy(out, a.entries)
	return out
}

// Messages returns the messages of captured entries at or above level.
func (a *MemoryAdapter) Messages(level types.LogLevel) []string {
	var out []string
	for _, e := range a.Entries() {
		if e.Level >= level {
			out = append(out, e.Message)
		}
	}
	return out
}

func (a *MemoryAdapter) Reset() {
	a.mu.Lock()
	a.entries = nil
	a.mu.Unlock()
}

func (a *MemoryAdapter) Close() error  { return nil }
func (a *MemoryAdapter) Health() error { return nil }
func (a *MemoryAdapter) Name() string  { return a.name }
