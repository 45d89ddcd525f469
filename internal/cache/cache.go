// Package cache memoizes successful generations keyed by the two input texts.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"resumetex/internal/config"
)

// Entry is a cached successful outcome.
type Entry struct {
	PDF          []byte    `json:"pdf"`
	PageCount    int       `json:"pageCount"`
	Latex        string    `json:"latex"`
	FixesApplied []string  `json:"fixesApplied,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Cache is a bounded result store. Reads happen before a run and writes
// after it; concurrent writes to one key are last-write-wins.
type Cache interface {
	Get(ctx context.Context, key string) (*Entry, bool, error)
	Set(ctx context.Context, key string, entry *Entry) error
	Ping(ctx context.Context) error
	Close() error
	Name() string
}

// Key hashes the job description and master resume into a cache key. The
// NUL separator keeps ("ab","c") and ("a","bc") apart.
func Key(jobDescription, masterResume string) string {
	h := sha256.New()
	h.Write([]byte(jobDescription))
	h.Write([]byte{0})
	h.Write([]byte(masterResume))
	return hex.EncodeToString(h.Sum(nil))
}

// New builds the cache selected by cfg.Cache.Backend: memory, redis or none.
func New(cfg *config.Config) (Cache, error) {
	switch strings.ToLower(cfg.Cache.Backend) {
	case "", "memory":
		return NewMemory(cfg.Cache.MaxEntries, cfg.Cache.TTL), nil
	case "redis":
		return NewRedis(RedisOptions{
			URL:      cfg.Redis.URL,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Timeout:  cfg.Redis.Timeout,
			TTL:      cfg.Cache.TTL,
		})
	case "none", "off":
		return Noop{}, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

// Noop never stores anything.
type Noop struct{}

func (Noop) Get(context.Context, string) (*Entry, bool, error) { return nil, false, nil }
func (Noop) Set(context.Context, string, *Entry) error          { return nil }
func (Noop) Ping(context.Context) error                         { return nil }
func (Noop) Close() error                                       { return nil }
func (Noop) Name() string                                       { return "none" }
