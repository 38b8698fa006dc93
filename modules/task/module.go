package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/ERSMS-25L/ERSMS-Task-Service/modules/cache"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// Config configures the task module.
type Config struct {
	// DatabaseURL selects the store: postgres://, sqlite://<path> or memory://.
	DatabaseURL string
	// MaxPageSize bounds the size of a listing page.
	MaxPageSize int
}

// TaskModule owns the task store and serves the task engine over
// request-reply services.
type TaskModule struct {
	config      Config
	repo        Repository
	service     TaskService
	storeKind   string
	cachePlugin *cache.PluginModule
}

var (
	_ mono.Module                = (*TaskModule)(nil)
	_ mono.ServiceProviderModule = (*TaskModule)(nil)
	_ mono.UsePluginModule       = (*TaskModule)(nil)
	_ mono.HealthCheckableModule = (*TaskModule)(nil)
)

// NewModule creates a TaskModule.
func NewModule(config Config) *TaskModule {
	if config.MaxPageSize <= 0 {
		config.MaxPageSize = DefaultMaxPageSize
	}
	return &TaskModule{config: config}
}

// Name returns the module name.
func (m *TaskModule) Name() string {
	return "task"
}

// SetPlugin receives the optional cache plugin.
func (m *TaskModule) SetPlugin(alias string, plugin mono.PluginModule) {
	if alias == "cache" {
		if cachePlugin, ok := plugin.(*cache.PluginModule); ok {
			m.cachePlugin = cachePlugin
			log.Printf("[task] Received cache plugin")
		}
	}
}

// Start opens the store and builds the engine.
func (m *TaskModule) Start(ctx context.Context) error {
	repo, kind, err := openRepository(ctx, m.config.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open task store: %w", err)
	}
	m.storeKind = kind
	m.repo = repo

	// The plugin has started by now, so its port is ready.
	if m.cachePlugin != nil {
		if port := m.cachePlugin.Port(); port != nil {
			m.repo = NewCachedRepository(repo, port)
		}
	}

	m.service = NewEngine(m.repo, WithMaxPageSize(m.config.MaxPageSize))

	log.Printf("[task] Module started (store: %s, cache: %t)", m.storeKind, m.repo != repo)
	return nil
}

// Stop closes the store.
func (m *TaskModule) Stop(_ context.Context) error {
	if m.repo != nil {
		if err := m.repo.Close(); err != nil {
			log.Printf("[task] Error closing store: %v", err)
		}
	}
	log.Println("[task] Module stopped")
	return nil
}

// Health pings the store.
func (m *TaskModule) Health(ctx context.Context) mono.HealthStatus {
	if m.repo == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "store not initialized",
		}
	}
	if err := m.repo.Ping(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("store ping failed: %v", err),
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"store": m.storeKind,
		},
	}
}

// RegisterServices registers the task request-reply services.
func (m *TaskModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceCreate, json.Unmarshal, json.Marshal, m.createTask,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceCreate, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceGet, json.Unmarshal, json.Marshal, m.getTask,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGet, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceUpdate, json.Unmarshal, json.Marshal, m.updateTask,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceUpdate, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceDelete, json.Unmarshal, json.Marshal, m.deleteTask,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceDelete, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceList, json.Unmarshal, json.Marshal, m.listTasks,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceList, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceStats, json.Unmarshal, json.Marshal, m.taskStats,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceStats, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServicePing, json.Unmarshal, json.Marshal, m.ping,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServicePing, err)
	}

	log.Printf("[task] Registered services: %s, %s, %s, %s, %s, %s, %s",
		ServiceCreate, ServiceGet, ServiceUpdate, ServiceDelete, ServiceList, ServiceStats, ServicePing)
	return nil
}
