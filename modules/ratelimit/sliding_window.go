// Package ratelimit limits authenticated API traffic per user with a Redis
// sliding window.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/ERSMS-25L/ERSMS-Task-Service/domain/ratelimit"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindowScript keeps one sorted set per key, scored by request time in
// milliseconds. It returns {allowed, remaining, retry_after_ms}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local used = redis.call('ZCARD', key)

if used >= limit then
	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	local wait = 0
	if #oldest == 2 then
		wait = tonumber(oldest[2]) + window - now
	end
	return {0, 0, wait}
end

redis.call('ZADD', key, now, member)
redis.call('PEXPIRE', key, window)
return {1, limit - used - 1, 0}
`)

// SlidingWindowLimiter implements ratelimit.Limiter on Redis.
type SlidingWindowLimiter struct {
	client redis.Scripter
	config ratelimit.Config
	prefix string
	now    func() time.Time
}

var _ ratelimit.Limiter = (*SlidingWindowLimiter)(nil)

// NewSlidingWindowLimiter creates a limiter that stores its windows under prefix.
func NewSlidingWindowLimiter(client redis.Scripter, config ratelimit.Config, prefix string) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		client: client,
		config: config,
		prefix: prefix,
		now:    time.Now,
	}
}

func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (*ratelimit.Result, error) {
	now := l.now()
	reply, err := slidingWindowScript.Run(ctx, l.client, []string{l.prefix + key},
		now.UnixMilli(),
		l.config.WindowSize.Milliseconds(),
		l.config.RequestsPerWindow,
		uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit script failed for %s: %w", key, err)
	}
	if len(reply) != 3 {
		return nil, fmt.Errorf("rate limit script returned %d values, want 3", len(reply))
	}

	result := &ratelimit.Result{
		Allowed:   reply[0] == 1,
		Remaining: int(reply[1]),
		ResetAt:   now.Add(l.config.WindowSize),
	}
	if !result.Allowed {
		result.RetryAfter = time.Duration(reply[2]) * time.Millisecond
		result.ResetAt = now.Add(result.RetryAfter)
	}
	return result, nil
}

// Close is a no-op; the module owns the Redis client.
func (l *SlidingWindowLimiter) Close() error {
	return nil
}
