package cache

import (
	"context"
	"testing"
	"time"

	"resumetex/internal/config"
)

func TestKey(t *testing.T) {
	a := Key("ab", "c")
	b := Key("a", "bc")
	if a == b {
		t.Error("separator does not distinguish input boundaries")
	}
	if Key("ab", "c") != a {
		t.Error("key is not deterministic")
	}
	if len(a) != 64 {
		t.Errorf("key length = %d, want 64 hex chars", len(a))
	}
}

func TestMemoryEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(2, time.Hour)

	_ = m.Set(ctx, "a", &Entry{PageCount: 1})
	_ = m.Set(ctx, "b", &Entry{PageCount: 2})
	if _, ok, _ := m.Get(ctx, "a"); !ok {
		t.Fatal("a missing")
	}
	_ = m.Set(ctx, "c", &Entry{PageCount: 3})

	if _, ok, _ := m.Get(ctx, "b"); ok {
		t.Error("b should have been evicted")
	}
	if e, ok, _ := m.Get(ctx, "a"); !ok || e.PageCount != 1 {
		t.Errorf("a = %+v, %v", e, ok)
	}
	if m.Len() != 2 {
		t.Errorf("Len = %d", m.Len())
	}
}

func TestMemoryExpires(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(10, 20*time.Millisecond)
	_ = m.Set(ctx, "k", &Entry{PageCount: 1})

	time.Sleep(60 * time.Millisecond)
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Error("entry outlived its TTL")
	}
}

func TestNewSelectsBackend(t *testing.T) {
	tests := []struct {
		backend string
		want    string
		wantErr bool
	}{
		{"memory", "memory", false},
		{"", "memory", false},
		{"none", "none", false},
		{"redis", "redis", false},
		{"memcached", "", true},
	}
	for _, tt := range tests {
		cfg := config.Defaults()
		cfg.Cache.Backend = tt.backend
		c, err := New(cfg)
		if (err != nil) != tt.wantErr {
			t.Errorf("New(%q) error = %v", tt.backend, err)
			continue
		}
		if err == nil {
			if c.Name() != tt.want {
				t.Errorf("New(%q) = %s, want %s", tt.backend, c.Name(), tt.want)
			}
			_ = c.Close()
		}
	}
}

func TestRedisUnreachableReturnsError(t *testing.T) {
	r, err := NewRedis(RedisOptions{URL: "redis://127.0.0.1:1/0", Timeout: 200 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, _, err := r.Get(ctx, "k"); err == nil {
		t.Error("Get against a closed port succeeded")
	}
	if err := r.Ping(ctx); err == nil {
		t.Error("Ping against a closed port succeeded")
	}
}

func TestNewRedisRejectsBadURL(t *testing.T) {
	if _, err := NewRedis(RedisOptions{URL: "not a url"}); err == nil {
		t.Error("bad url accepted")
	}
}
