package cache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/storage"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/storage/redis/v3"
)

const (
	dialTimeout    = 3 * time.Second
	healthCheckKey = "__health_check__"
)

// Config configures the Redis connection of the cache plugin.
type Config struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces every key written by this service.
	Prefix string
	// TTL applies to values stored with Set.
	TTL time.Duration
}

// PluginModule is the "cache" plugin. Modules that implement
// mono.UsePluginModule receive it through SetPlugin and read Port after it
// has started.
type PluginModule struct {
	config    Config
	container types.ServiceContainer
	storage   storage.Storage
	service   CacheService
}

var (
	_ mono.PluginModule          = (*PluginModule)(nil)
	_ mono.HealthCheckableModule = (*PluginModule)(nil)
)

// NewPluginModule creates the cache plugin. A zero TTL defaults to one minute.
func NewPluginModule(config Config) *PluginModule {
	if config.TTL <= 0 {
		config.TTL = time.Minute
	}
	return &PluginModule{config: config}
}

func (m *PluginModule) Name() string {
	return "cache"
}

// Start opens the Redis storage. The address is dialled first because the
// storage constructor panics on an unreachable server.
func (m *PluginModule) Start(_ context.Context) error {
	if m.config.Addr == "" {
		return errors.New("cache: redis address is required")
	}
	conn, err := net.DialTimeout("tcp", m.config.Addr, dialTimeout)
	if err != nil {
		return fmt.Errorf("cache: redis not reachable at %s: %w", m.config.Addr, err)
	}
	conn.Close()

	host, port := parseRedisAddr(m.config.Addr)
	m.storage = redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: m.config.Password,
		Database: m.config.DB,
		PoolSize: 50,
	})
	m.service = NewCacheService(m.storage, m.config.Prefix, m.config.TTL)

	log.Printf("[cache] Plugin started (redis %s, db %d, prefix %q, ttl %s)",
		m.config.Addr, m.config.DB, m.config.Prefix, m.config.TTL)
	return nil
}

func (m *PluginModule) Stop(_ context.Context) error {
	if m.service == nil {
		return nil
	}
	err := m.service.Close()
	m.service = nil
	m.storage = nil
	if err != nil {
		return fmt.Errorf("cache: failed to close redis storage: %w", err)
	}
	log.Println("[cache] Plugin stopped")
	return nil
}

func (m *PluginModule) SetContainer(container types.ServiceContainer) {
	m.container = container
}

func (m *PluginModule) Container() types.ServiceContainer {
	return m.container
}

// Port returns the CacheService, or nil while the plugin is not running.
func (m *PluginModule) Port() CacheService {
	return m.service
}

func (m *PluginModule) Health(ctx context.Context) mono.HealthStatus {
	if m.storage == nil {
		return mono.HealthStatus{Healthy: false, Message: "not started"}
	}
	if _, err := m.storage.GetWithContext(ctx, healthCheckKey); err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("redis health check failed: %v", err)}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"addr":   m.config.Addr,
			"db":     m.config.DB,
			"prefix": m.config.Prefix,
			"ttl":    m.config.TTL.String(),
		},
	}
}

// parseRedisAddr splits host:port. Missing parts default to 127.0.0.1 and 6379.
func parseRedisAddr(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "127.0.0.1", 6379
	}
	if host == "" {
		host = "127.0.0.1"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = 6379
	}
	return host, port
}
