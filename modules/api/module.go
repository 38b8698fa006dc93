package api

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/ERSMS-25L/ERSMS-Task-Service/modules/auth"
	"github.com/ERSMS-25L/ERSMS-Task-Service/modules/ratelimit"
	"github.com/ERSMS-25L/ERSMS-Task-Service/modules/task"
	"github.com/go-monolith/mono"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	nanoid "github.com/jaevor/go-nanoid"
)

// Config configures the HTTP API.
type Config struct {
	Port            int
	APIPrefix       string
	ServiceName     string
	Version         string
	DefaultPageSize int
	// EnableTokenIssuer mounts POST /auth/token. Development only.
	EnableTokenIssuer bool
	// AccessLog enables the request logger.
	AccessLog   bool
	CORSOrigins string
	// RateLimiter limits task routes per user when set.
	RateLimiter *ratelimit.Module
}

// APIModule is the HTTP API module.
type APIModule struct {
	config   Config
	app      *fiber.App
	authPort auth.AuthPort
	taskPort task.TaskPort
}

// Compile-time interface checks.
var _ mono.Module = (*APIModule)(nil)
var _ mono.DependentModule = (*APIModule)(nil)
var _ mono.HealthCheckableModule = (*APIModule)(nil)

// NewModule creates a new APIModule.
func NewModule(config Config) *APIModule {
	if config.DefaultPageSize <= 0 {
		config.DefaultPageSize = 20
	}
	return &APIModule{config: config}
}

// Name returns the module name.
func (m *APIModule) Name() string {
	return "api"
}

// Dependencies returns the list of module dependencies.
func (m *APIModule) Dependencies() []string {
	return []string{"auth", "task"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *APIModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "auth":
		m.authPort = auth.NewAuthAdapter(container)
	case "task":
		m.taskPort = task.NewTaskAdapter(container)
	}
}

// Start initializes the Fiber HTTP server.
func (m *APIModule) Start(_ context.Context) error {
	if m.authPort == nil {
		return fmt.Errorf("auth dependency not set")
	}
	if m.taskPort == nil {
		return fmt.Errorf("task dependency not set")
	}

	app, err := newApp(m.config, NewHandlers(m.taskPort, m.authPort, m.config))
	if err != nil {
		return err
	}
	m.app = app

	addr := fmt.Sprintf(":%d", m.config.Port)
	go func() {
		if err := m.app.Listen(addr); err != nil {
			log.Printf("[api] HTTP server error: %v", err)
		}
	}()

	log.Printf("[api] HTTP server started on %s", addr)
	return nil
}

// Stop shuts down the Fiber HTTP server.
func (m *APIModule) Stop(ctx context.Context) error {
	if m.app == nil {
		return nil
	}
	log.Println("[api] Shutting down HTTP server...")
	return m.app.ShutdownWithContext(ctx)
}

// Health returns the health status of the module.
func (m *APIModule) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: map[string]any{
			"port": m.config.Port,
		},
	}
}

// newApp builds the Fiber application with middleware and routes.
func newApp(config Config, h *Handlers) (*fiber.App, error) {
	generateID, err := nanoid.Standard(21)
	if err != nil {
		return nil, fmt.Errorf("failed to create request id generator: %w", err)
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		AppName:               config.ServiceName,
		ErrorHandler:          customErrorHandler,
	})

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{
		Generator: generateID,
	}))
	if config.AccessLog {
		app.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path} ${locals:requestid}\n",
		}))
	}
	origins := config.CORSOrigins
	if origins == "" {
		origins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	setupRoutes(app, config, h)
	return app, nil
}

// setupRoutes mounts every route at the root and again under the API prefix.
func setupRoutes(app *fiber.App, config Config, h *Handlers) {
	routers := []fiber.Router{app}
	if prefix := strings.TrimRight(config.APIPrefix, "/"); prefix != "" {
		routers = append(routers, app.Group(prefix))
	}

	for _, r := range routers {
		r.Get("/health", h.Health)
		r.Get("/ready", h.Ready)

		if config.EnableTokenIssuer {
			r.Post("/auth/token", h.IssueToken)
		}

		protected := []fiber.Handler{AuthMiddleware(h.authPort)}
		if config.RateLimiter != nil {
			protected = append(protected, config.RateLimiter.Handler(userKey))
		}

		tasks := r.Group("/tasks", protected...)
		tasks.Post("/", h.CreateTask)
		tasks.Get("/", h.ListTasks)
		tasks.Get("/:id", h.GetTask)
		tasks.Put("/:id", h.UpdateTask)
		tasks.Delete("/:id", h.DeleteTask)

		users := r.Group("/users", protected...)
		users.Get("/me/stats", h.UserStats)
	}
}
