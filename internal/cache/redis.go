package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"resumetex/internal/logging"
	"resumetex/internal/logging/types"
)

const redisKeyPrefix = "resumetex:result:"

// RedisOptions configures a Redis-backed cache.
type RedisOptions struct {
	URL      string
	Password string
	DB       int
	Timeout  time.Duration
	TTL      time.Duration
}

// Redis stores entries as JSON with a TTL.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger types.Logger
}

// NewRedis parses opts.URL; the connection is established lazily.
func NewRedis(opts RedisOptions) (*Redis, error) {
	ro, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opts.Password != "" {
		ro.Password = opts.Password
	}
	if opts.DB != 0 {
		ro.DB = opts.DB
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ro.DialTimeout = timeout
	ro.ReadTimeout = timeout
	ro.WriteTimeout = timeout

	return &Redis{
		client: redis.NewClient(ro),
		ttl:    opts.TTL,
		logger: logging.GetGlobalLogger(),
	}, nil
}

func (r *Redis) Get(ctx context.Context, key string) (*Entry, bool, error) {
	data, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		// a corrupt entry is a miss; the next Set replaces it
		r.logger.Warn("Discarding undecodable cache entry", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return nil, false, nil
	}
	return &e, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := r.client.Set(ctx, redisKeyPrefix+key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Name() string { return "redis" }
