/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides a Redis-based caching layer for sun times and
// recommendation pages.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/sonic_road/internal/catalog"
	"github.com/friendsincode/sonic_road/internal/signals"
	"github.com/friendsincode/sonic_road/internal/telemetry"
)

// Default TTL values for different cache types
const (
	DefaultSunTimesTTL        = 6 * time.Hour
	DefaultRecommendationsTTL = 10 * time.Minute
)

// Key prefixes for Redis cache
const (
	KeyPrefix          = "sonicroad:cache:"
	KeySunTimes        = KeyPrefix + "sun:"  // + lat:lon:day
	KeyRecommendations = KeyPrefix + "recs:" // + query hash
)

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SunTimesTTL        time.Duration
	RecommendationsTTL time.Duration

	// Fallback behavior
	DisableOnError bool // If true, disable caching on Redis errors
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr:          "localhost:6379",
		SunTimesTTL:        DefaultSunTimesTTL,
		RecommendationsTTL: DefaultRecommendationsTTL,
		DisableOnError:     true,
	}
}

// Cache provides Redis-backed caching with graceful fallback. A disabled
// cache misses every read and drops every write.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool
}

// New creates a new cache instance. An unreachable server yields a disabled
// cache rather than an error.
func New(cfg Config, logger zerolog.Logger) (*Cache, error) {
	if cfg.SunTimesTTL <= 0 {
		cfg.SunTimesTTL = DefaultSunTimesTTL
	}
	if cfg.RecommendationsTTL <= 0 {
		cfg.RecommendationsTTL = DefaultRecommendationsTTL
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     4,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis cache unavailable, running without caching")
		_ = client.Close()
		return &Cache{
			logger:   logger.With().Str("component", "cache").Logger(),
			config:   cfg,
			disabled: true,
		}, nil
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("Redis cache initialized")

	return &Cache{
		client: client,
		logger: logger.With().Str("component", "cache").Logger(),
		config: cfg,
	}, nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAvailable returns true if the cache is operational.
func (c *Cache) IsAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

func (c *Cache) handleError(err error, operation string) {
	if err == nil || errors.Is(err, redis.Nil) {
		return
	}

	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")

	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn().Msg("disabling cache due to Redis error")
	}
}

func (c *Cache) get(ctx context.Context, key string, dest any) (bool, error) {
	if !c.IsAvailable() {
		return false, nil
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		c.handleError(err, "get")
		return false, err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("failed to unmarshal cached value")
		return false, nil
	}

	return true, nil
}

func (c *Cache) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.IsAvailable() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.handleError(err, "set")
		return err
	}

	return nil
}

func (c *Cache) deletePattern(ctx context.Context, pattern string) (int, error) {
	if !c.IsAvailable() {
		return 0, nil
	}

	deleted := 0
	var cursor uint64
	for {
		keys, nextCursor, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			c.handleError(err, "scan")
			return deleted, err
		}

		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.handleError(err, "delete_batch")
				return deleted, err
			}
			deleted += len(keys)
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return deleted, nil
}

func observe(name string, hit bool) {
	if hit {
		telemetry.CacheHits.WithLabelValues(name).Inc()
	} else {
		telemetry.CacheMisses.WithLabelValues(name).Inc()
	}
}

// GetSunTimes implements signals.SunCache.
func (c *Cache) GetSunTimes(ctx context.Context, key string) (signals.SunTimes, bool) {
	var st signals.SunTimes
	found, err := c.get(ctx, KeySunTimes+key, &st)
	hit := err == nil && found
	observe("sun", hit)
	if !hit {
		return signals.SunTimes{}, false
	}
	c.logger.Debug().Str("key", key).Msg("sun times cache hit")
	return st, true
}

// SetSunTimes implements signals.SunCache. Failures are logged and dropped.
func (c *Cache) SetSunTimes(ctx context.Context, key string, st signals.SunTimes) {
	if err := c.set(ctx, KeySunTimes+key, st, c.config.SunTimesTTL); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("caching sun times failed")
	}
}

// GetRecommendations implements catalog.PageCache.
func (c *Cache) GetRecommendations(ctx context.Context, key string) ([]catalog.Candidate, bool) {
	var cands []catalog.Candidate
	found, err := c.get(ctx, KeyRecommendations+key, &cands)
	hit := err == nil && found
	observe("recommendations", hit)
	if !hit {
		return nil, false
	}
	c.logger.Debug().Int("count", len(cands)).Msg("recommendations cache hit")
	return cands, true
}

// SetRecommendations implements catalog.PageCache. Empty pages are not cached.
func (c *Cache) SetRecommendations(ctx context.Context, key string, cands []catalog.Candidate) {
	if len(cands) == 0 {
		return
	}
	if err := c.set(ctx, KeyRecommendations+key, cands, c.config.RecommendationsTTL); err != nil {
		c.logger.Debug().Err(err).Msg("caching recommendations failed")
	}
}

// FlushAll removes all cached data and reports how many keys were deleted.
func (c *Cache) FlushAll(ctx context.Context) (int, error) {
	c.logger.Warn().Msg("flushing all cache data")
	return c.deletePattern(ctx, KeyPrefix+"*")
}
