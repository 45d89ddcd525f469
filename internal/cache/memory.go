package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const defaultMaxEntries = 256

// Memory is an in-process LRU bounded by entry count and TTL.
type Memory struct {
	lru *expirable.LRU[string, *Entry]
}

// NewMemory keeps at most maxEntries entries, each for at most ttl. A
// non-positive ttl disables expiry.
func NewMemory(maxEntries int, ttl time.Duration) *Memory {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Memory{lru: expirable.NewLRU[string, *Entry](maxEntries, nil, ttl)}
}

func (m *Memory) Get(_ context.Context, key string) (*Entry, bool, error) {
	e, ok := m.lru.Get(key)
	return e, ok, nil
}

func (m *Memory) Set(_ context.Context, key string, entry *Entry) error {
	m.lru.Add(key, entry)
	return nil
}

// Len reports the number of live entries.
func (m *Memory) Len() int { return m.lru.Len() }

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error {
	m.lru.Purge()
	return nil
}

func (m *Memory) Name() string { return "memory" }
