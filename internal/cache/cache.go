// Package cache is a small JSON cache over Redis. A client built without an address is
// disabled and every lookup misses.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"twol-crm/internal/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ErrMiss is returned when a key is absent or the cache is disabled.
var ErrMiss = errors.New("cache miss")

// Client wraps redis.Client. A nil or disabled Client is valid.
type Client struct {
	rdb *redis.Client
}

// NewClient connects to Redis when REDIS_ADDR is set.
func NewClient(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (*Client, error) {
	if cfg.RedisAddr == "" {
		logger.Info("redis disabled, permission cache is a no-op")
		return &Client{}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("redis connected", zap.String("addr", cfg.RedisAddr))

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info("closing redis connection")
			return rdb.Close()
		},
	})

	return &Client{rdb: rdb}, nil
}

// Enabled reports whether the client talks to a server.
func (c *Client) Enabled() bool {
	return c != nil && c.rdb != nil
}

// Cache stores values of T as JSON under prefix.
type Cache[T any] struct {
	client *Client
	prefix string
	ttl    time.Duration
}

func New[T any](client *Client, prefix string, ttl time.Duration) *Cache[T] {
	return &Cache[T]{client: client, prefix: prefix, ttl: ttl}
}

func (c *Cache[T]) key(key string) string {
	return c.prefix + ":" + key
}

func (c *Cache[T]) Get(ctx context.Context, key string) (*T, error) {
	if !c.client.Enabled() {
		return nil, ErrMiss
	}

	raw, err := c.client.rdb.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache get %s: %w", key, err)
	}

	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return &value, nil
}

func (c *Cache[T]) Set(ctx context.Context, key string, value T) error {
	if !c.client.Enabled() {
		return nil
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	return c.client.rdb.Set(ctx, c.key(key), raw, c.ttl).Err()
}

// Delete removes keys. Missing keys are not an error.
func (c *Cache[T]) Delete(ctx context.Context, keys ...string) error {
	if !c.client.Enabled() || len(keys) == 0 {
		return nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	return c.client.rdb.Del(ctx, full...).Err()
}
