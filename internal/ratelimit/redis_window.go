package ratelimit

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const fixedWindowScript = `
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {count, ttl}
`

// RedisWindow is the shared-counter variant for multi-instance deployments.
// Same fixed-window semantics as FixedWindow, with the counter in redis.
type RedisWindow struct {
	client *redis.Client
	script *redis.Script
}

func NewRedisWindow(client *redis.Client) *RedisWindow {
	if client == nil {
		return nil
	}
	return &RedisWindow{
		client: client,
		script: redis.NewScript(fixedWindowScript),
	}
}

func (r *RedisWindow) Check(ctx context.Context, key string, cfg Config) (Result, error) {
	if r == nil || r.client == nil {
		return Result{}, errors.New("rate limiter not configured")
	}
	if key == "" || cfg.MaxRequests <= 0 || cfg.Window <= 0 {
		return Result{}, errors.New("rate limit key and config must be set")
	}

	res, err := r.script.Run(ctx, r.client, []string{key}, int64(cfg.Window/time.Millisecond)).Slice()
	if err != nil {
		return Result{}, err
	}
	if len(res) < 2 {
		return Result{}, errors.New("invalid rate limit script response")
	}

	count := castToInt(res[0])
	ttlMs := castToInt(res[1])
	if ttlMs < 0 {
		ttlMs = int64(cfg.Window / time.Millisecond)
	}
	resetTime := time.Now().UTC().Add(time.Duration(ttlMs) * time.Millisecond)

	remaining := cfg.MaxRequests - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   int(count) <= cfg.MaxRequests,
		Limit:     cfg.MaxRequests,
		Remaining: remaining,
		ResetTime: resetTime,
	}, nil
}

func castToInt(v interface{}) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case int:
		return int64(val)
	case float64:
		return int64(val)
	default:
		return 0
	}
}
