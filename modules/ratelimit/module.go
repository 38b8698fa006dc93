package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/ERSMS-25L/ERSMS-Task-Service/domain/ratelimit"
	"github.com/go-monolith/mono"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// ModuleConfig configures the rate limiting module.
type ModuleConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	// KeyPrefix namespaces the sliding windows. Defaults to "ratelimit:".
	KeyPrefix string
	Limits    ratelimit.Config
}

// Module owns the Redis client of the per-user rate limiter.
type Module struct {
	client     *redis.Client
	middleware atomic.Pointer[Middleware]
	config     ratelimit.Config
	options    *redis.Options
	keyPrefix  string
}

var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a rate limiting module.
func NewModule(config ModuleConfig) *Module {
	prefix := config.KeyPrefix
	if prefix == "" {
		prefix = "ratelimit:"
	}
	return &Module{
		config: config.Limits,
		options: &redis.Options{
			Addr:     config.RedisAddr,
			Password: config.RedisPassword,
			DB:       config.RedisDB,
		},
		keyPrefix: prefix,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "ratelimit"
}

// Start connects to Redis and enables the middleware.
func (m *Module) Start(ctx context.Context) error {
	if err := m.config.Validate(); err != nil {
		return err
	}
	m.client = redis.NewClient(m.options)

	if err := m.client.Ping(ctx).Err(); err != nil {
		m.client.Close()
		m.client = nil
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	limiter := NewSlidingWindowLimiter(m.client, m.config, m.keyPrefix)
	m.middleware.Store(NewMiddleware(limiter, m.config))

	log.Printf("[ratelimit] Connected to Redis at %s (%d requests per %s)",
		m.options.Addr, m.config.RequestsPerWindow, m.config.WindowSize)
	return nil
}

// Stop disables the middleware and closes the Redis connection.
func (m *Module) Stop(_ context.Context) error {
	m.middleware.Store(nil)
	if m.client != nil {
		if err := m.client.Close(); err != nil {
			log.Printf("[ratelimit] Error closing Redis connection: %v", err)
		}
	}
	log.Println("[ratelimit] Module stopped")
	return nil
}

// Health verifies the Redis connection.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if err := m.ping(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: err.Error(),
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"requests_per_window": m.config.RequestsPerWindow,
			"window":              m.config.WindowSize.String(),
		},
	}
}

func (m *Module) ping(ctx context.Context) error {
	if m.client == nil {
		return errors.New("redis client not initialized")
	}
	return m.client.Ping(ctx).Err()
}

// Handler returns middleware limited by keyFn. Requests pass through
// untouched while the module is not running.
func (m *Module) Handler(keyFn KeyFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		mw := m.middleware.Load()
		if mw == nil {
			return c.Next()
		}
		return mw.Handler(keyFn)(c)
	}
}
