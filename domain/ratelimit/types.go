// Package ratelimit holds the per-user request budget shared by the limiter
// and the HTTP middleware.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// Config is a request budget: at most RequestsPerWindow requests in any
// trailing WindowSize.
type Config struct {
	RequestsPerWindow int
	WindowSize        time.Duration
}

// Validate rejects budgets that would block or admit every request.
func (c Config) Validate() error {
	if c.RequestsPerWindow < 1 {
		return errors.New("rate limit must allow at least one request per window")
	}
	if c.WindowSize < time.Millisecond {
		return errors.New("rate limit window must be at least 1ms")
	}
	return nil
}

// Result is the decision for one request.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
	// RetryAfter is zero for allowed requests.
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, never below one,
// as the Retry-After header requires.
func (r *Result) RetryAfterSeconds() int {
	secs := int((r.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

// Limiter decides whether the request identified by key fits its budget.
type Limiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
	Close() error
}

// DefaultUserConfig allows 120 requests per minute and user.
func DefaultUserConfig() Config {
	return Config{
		RequestsPerWindow: 120,
		WindowSize:        time.Minute,
	}
}
