// Package limiter implements Redis-backed request rate limiting.
package limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Strategy decides whether one more request under key is allowed.
// limit is a count (or bucket capacity) per window.
type Strategy interface {
	Allow(ctx context.Context, rdb redis.Scripter, key string, limit int, window time.Duration) (bool, error)
}

type Manager struct {
	rdb      redis.Scripter
	strategy Strategy
}

func NewManager(rdb redis.Scripter, strategy Strategy) *Manager {
	return &Manager{
		rdb:      rdb,
		strategy: strategy,
	}
}

func (m *Manager) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return m.strategy.Allow(ctx, m.rdb, key, limit, window)
}

// NewStrategy maps a configured name onto a Strategy.
func NewStrategy(name string) (Strategy, error) {
	switch name {
	case "", "fixed_window":
		return FixedWindowStrategy{}, nil
	case "token_bucket":
		return TokenBucketStrategy{}, nil
	default:
		return nil, fmt.Errorf("unknown rate limit strategy %q", name)
	}
}

var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[2])
end
if current > tonumber(ARGV[1]) then
	return 0
end
return 1
`)

// FixedWindowStrategy counts requests per window with INCR and EXPIRE.
type FixedWindowStrategy struct{}

func (FixedWindowStrategy) Allow(ctx context.Context, rdb redis.Scripter, key string, limit int, window time.Duration) (bool, error) {
	secs := int(window.Seconds())
	if secs < 1 {
		secs = 1
	}
	result, err := fixedWindowScript.Run(ctx, rdb, []string{key}, limit, secs).Int()
	if err != nil {
		return false, err
	}
	return result == 1, nil
}

// KEYS[1] bucket hash; ARGV capacity, refill rate per second, now (unix seconds).
var tokenBucketScript = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local info = redis.call("HMGET", KEYS[1], "tokens", "last_time")
local tokens = tonumber(info[1])
local last_time = tonumber(info[2])
if tokens == nil then
	tokens = capacity
	last_time = now
end

tokens = math.min(capacity, tokens + math.max(0, now - last_time) * rate)
if tokens < 1 then
	return 0
end
redis.call("HSET", KEYS[1], "tokens", tokens - 1, "last_time", now)
redis.call("EXPIRE", KEYS[1], 60)
return 1
`)

// TokenBucketStrategy refills limit tokens per window.
type TokenBucketStrategy struct{}

func (TokenBucketStrategy) Allow(ctx context.Context, rdb redis.Scripter, key string, limit int, window time.Duration) (bool, error) {
	rate := float64(limit) / window.Seconds()
	if rate <= 0 {
		rate = 1
	}
	result, err := tokenBucketScript.Run(ctx, rdb, []string{key}, limit, rate, time.Now().Unix()).Int()
	if err != nil {
		return false, err
	}
	return result == 1, nil
}
