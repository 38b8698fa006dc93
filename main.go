package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	ratelimitdomain "github.com/ERSMS-25L/ERSMS-Task-Service/domain/ratelimit"
	"github.com/ERSMS-25L/ERSMS-Task-Service/modules/api"
	"github.com/ERSMS-25L/ERSMS-Task-Service/modules/auth"
	"github.com/ERSMS-25L/ERSMS-Task-Service/modules/cache"
	"github.com/ERSMS-25L/ERSMS-Task-Service/modules/ratelimit"
	"github.com/ERSMS-25L/ERSMS-Task-Service/modules/task"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
)

const shutdownTimeout = 30 * time.Second

// Config holds the service configuration read from the environment.
type Config struct {
	ServiceName string
	Port        int
	Version     string
	APIPrefix   string
	Environment string
	Debug       bool

	DatabaseURL     string
	DefaultPageSize int
	MaxPageSize     int

	JWTSecretKey     string
	JWTPublicKeyFile string
	JWTIssuer        string
	JWTAccessTTL     time.Duration

	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	CacheTTL          time.Duration
	RateLimitRequests int
	RateLimitWindow   time.Duration

	CORSOrigins string
}

func loadConfig() Config {
	serviceName := getEnv("SERVICE_NAME", "task-service")
	limits := ratelimitdomain.DefaultUserConfig()

	return Config{
		ServiceName: serviceName,
		Port:        getEnvInt("SERVICE_PORT", 8002),
		Version:     getEnv("VERSION", "1.0.0"),
		APIPrefix:   getEnv("API_V1_STR", "/api/v1"),
		Environment: getEnv("ENVIRONMENT", "development"),
		Debug:       getEnvBool("DEBUG", true),

		DatabaseURL:     getEnv("DATABASE_URL", "sqlite://tasks.db"),
		DefaultPageSize: getEnvInt("DEFAULT_PAGE_SIZE", 20),
		MaxPageSize:     getEnvInt("MAX_PAGE_SIZE", task.DefaultMaxPageSize),

		JWTSecretKey:     getEnv("JWT_SECRET_KEY", auth.DefaultJWTConfig().SecretKey),
		JWTPublicKeyFile: getEnv("JWT_PUBLIC_KEY_FILE", ""),
		// An explicitly empty JWT_ISSUER disables the issuer check.
		JWTIssuer:    getEnvAllowEmpty("JWT_ISSUER", serviceName),
		JWTAccessTTL: getEnvDuration("JWT_ACCESS_TTL", auth.DefaultJWTConfig().AccessTokenDuration),

		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		CacheTTL:          getEnvDuration("CACHE_TTL", time.Minute),
		RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", limits.RequestsPerWindow),
		RateLimitWindow:   getEnvDuration("RATE_LIMIT_WINDOW", limits.WindowSize),

		CORSOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
	}
}

func (c Config) isDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}

func main() {
	log.Println("Starting task-service...")
	cfg := loadConfig()

	jwtConfig := auth.JWTConfig{
		SecretKey:           cfg.JWTSecretKey,
		AccessTokenDuration: cfg.JWTAccessTTL,
		Issuer:              cfg.JWTIssuer,
	}
	if cfg.JWTPublicKeyFile != "" {
		publicKey, err := auth.LoadPublicKey(cfg.JWTPublicKeyFile)
		if err != nil {
			log.Fatalf("Failed to load JWT public key: %v", err)
		}
		jwtConfig.PublicKey = publicKey
	}

	// Create mono application with configuration
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create mono application: %v", err)
	}

	// Redis is optional: without it tasks are read straight from the store
	// and requests are not rate limited.
	var limiter *ratelimit.Module
	if cfg.RedisAddr != "" {
		cachePlugin := cache.NewPluginModule(cache.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.ServiceName + ":",
			TTL:      cfg.CacheTTL,
		})
		if err := app.RegisterPlugin(cachePlugin, "cache"); err != nil {
			log.Fatalf("Failed to register cache plugin: %v", err)
		}

		limiter = ratelimit.NewModule(ratelimit.ModuleConfig{
			RedisAddr:     cfg.RedisAddr,
			RedisPassword: cfg.RedisPassword,
			RedisDB:       cfg.RedisDB,
			KeyPrefix:     cfg.ServiceName + ":ratelimit:",
			Limits: ratelimitdomain.Config{
				RequestsPerWindow: cfg.RateLimitRequests,
				WindowSize:        cfg.RateLimitWindow,
			},
		})
	}

	authModule := auth.NewModule(auth.Config{
		JWT:        jwtConfig,
		AllowIssue: cfg.isDevelopment(),
	})
	taskModule := task.NewModule(task.Config{
		DatabaseURL: cfg.DatabaseURL,
		MaxPageSize: cfg.MaxPageSize,
	})
	apiModule := api.NewModule(api.Config{
		Port:              cfg.Port,
		APIPrefix:         cfg.APIPrefix,
		ServiceName:       cfg.ServiceName,
		Version:           cfg.Version,
		DefaultPageSize:   cfg.DefaultPageSize,
		EnableTokenIssuer: cfg.isDevelopment(),
		AccessLog:         cfg.Debug,
		CORSOrigins:       cfg.CORSOrigins,
		RateLimiter:       limiter,
	})

	// Register modules
	app.Register(authModule)
	app.Register(taskModule)
	if limiter != nil {
		app.Register(limiter)
	}
	app.Register(apiModule)

	// Start all modules
	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(cfg)

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo(cfg Config) {
	log.Println("=== Task Service Started ===")
	log.Printf("Environment: %s (version %s)", cfg.Environment, cfg.Version)
	log.Printf("API available at http://localhost:%d (also under %s)", cfg.Port, cfg.APIPrefix)
	if cfg.RedisAddr != "" {
		log.Printf("Redis: %s (cache TTL %s, %d req/%s per user)",
			cfg.RedisAddr, cfg.CacheTTL, cfg.RateLimitRequests, cfg.RateLimitWindow)
	} else {
		log.Println("Redis: disabled (no cache, no rate limiting)")
	}
	log.Println("Endpoints:")
	log.Println("  GET    /health               - Liveness check")
	log.Println("  GET    /ready                - Readiness check (task store)")
	if cfg.isDevelopment() {
		log.Println("  POST   /auth/token           - Issue a development token")
	}
	log.Println("  POST   /tasks                - Create a task")
	log.Println("  GET    /tasks                - List tasks (status, priority, search, page, size)")
	log.Println("  GET    /tasks/:id            - Get a task")
	log.Println("  PUT    /tasks/:id            - Update a task")
	log.Println("  DELETE /tasks/:id            - Delete a task")
	log.Println("  GET    /users/me/stats       - Task counts per status")
	log.Println("Press Ctrl+C to shutdown")
}

// getEnv returns environment variable value or default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAllowEmpty returns the variable when it is set, even to "".
func getEnvAllowEmpty(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

// getEnvInt returns environment variable as int or default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Printf("Warning: invalid int value for %s: %s, using default: %d", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvBool returns environment variable as bool or default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
		log.Printf("Warning: invalid bool value for %s: %s, using default: %t", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvDuration returns environment variable as duration or default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		log.Printf("Warning: invalid duration value for %s: %s, using default: %s", key, value, defaultValue)
	}
	return defaultValue
}
