package ratelimit

import (
	"fmt"
	"log"
	"strconv"

	"github.com/ERSMS-25L/ERSMS-Task-Service/domain/ratelimit"
	"github.com/gofiber/fiber/v2"
)

// KeyFunc extracts the rate limit key of a request. An empty key falls back
// to the client IP.
type KeyFunc func(c *fiber.Ctx) string

// Middleware applies a Limiter to fiber routes.
type Middleware struct {
	limiter ratelimit.Limiter
	config  ratelimit.Config
}

// NewMiddleware creates rate limiting middleware over limiter.
func NewMiddleware(limiter ratelimit.Limiter, config ratelimit.Config) *Middleware {
	return &Middleware{
		limiter: limiter,
		config:  config,
	}
}

// Handler returns middleware that limits requests by the key keyFn returns.
// Limiter errors let the request through.
func (m *Middleware) Handler(keyFn KeyFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := keyFn(c)
		if key == "" {
			key = "ip:" + c.IP()
		} else {
			key = "user:" + key
		}

		result, err := m.limiter.Allow(c.Context(), key)
		if err != nil {
			log.Printf("[ratelimit] Limiter error, allowing request: %v", err)
			c.Set("X-RateLimit-Error", "unavailable")
			return c.Next()
		}

		setRateLimitHeaders(c, result, m.config.RequestsPerWindow)

		if !result.Allowed {
			return sendRateLimitExceeded(c, result)
		}

		return c.Next()
	}
}

// setRateLimitHeaders reports the caller's budget on every limited response.
func setRateLimitHeaders(c *fiber.Ctx, result *ratelimit.Result, limit int) {
	c.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	c.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

// sendRateLimitExceeded answers 429 with the wait in Retry-After.
func sendRateLimitExceeded(c *fiber.Ctx, result *ratelimit.Result) error {
	retryAfter := result.RetryAfterSeconds()
	c.Set("Retry-After", strconv.Itoa(retryAfter))

	return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
		"error":       "rate_limited",
		"message":     fmt.Sprintf("Rate limit exceeded. Please retry after %d seconds.", retryAfter),
		"retry_after": retryAfter,
	})
}
