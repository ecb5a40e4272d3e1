// Package ratelimit implements a Redis+Lua fixed-window rate limiter,
// used as ambient HTTP middleware on the command-issuing REST routes
// under /commands (agent chat, initiate workflow) so a single noisy caller can't
// starve the bus.
package ratelimit

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rosterhq/control-plane/internal/logger"
)

//go:embed rate_limit.lua
var rateLimitScript string

// Result reports one rate limit check's outcome.
type Result struct {
	Allowed           bool
	CurrentCount      int64
	Limit             int64
	RetryAfterSeconds int64
}

// Limiter checks per-key counters against a fixed window via an atomic
// Lua script, so concurrent requests from the same key never race past
// the limit.
type Limiter struct {
	redis  *redis.Client
	script *redis.Script
	log    *logger.Logger
}

// New constructs a Limiter over an existing Redis client (the same one
// the message bus uses).
func New(redisClient *redis.Client, log *logger.Logger) *Limiter {
	return &Limiter{redis: redisClient, script: redis.NewScript(rateLimitScript), log: log}
}

// CheckGlobal enforces a service-wide cap, independent of caller identity.
func (l *Limiter) CheckGlobal(ctx context.Context, limit int64, windowSec int) (*Result, error) {
	return l.check(ctx, "rate_limit:global", limit, windowSec)
}

// CheckKey enforces a per-key cap, e.g. "rate_limit:route:POST /workflows".
func (l *Limiter) CheckKey(ctx context.Context, key string, limit int64, windowSec int) (*Result, error) {
	return l.check(ctx, "rate_limit:"+key, limit, windowSec)
}

func (l *Limiter) check(ctx context.Context, key string, limit int64, windowSec int) (*Result, error) {
	raw, err := l.script.Run(ctx, l.redis, []string{key}, limit, windowSec).Result()
	if err != nil {
		l.log.Error("rate limit check failed", "key", key, "error", err)
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	arr, ok := raw.([]interface{})
	if !ok || len(arr) != 4 {
		return nil, fmt.Errorf("unexpected rate limit script result format")
	}

	result := &Result{
		Allowed:           arr[0].(int64) == 1,
		CurrentCount:      arr[1].(int64),
		Limit:             arr[2].(int64),
		RetryAfterSeconds: arr[3].(int64),
	}
	if !result.Allowed {
		l.log.Warn("rate limit exceeded", "key", key, "current", result.CurrentCount, "limit", limit)
	}
	return result, nil
}
