// Package config loads control plane configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every process's configuration. Individual cmd/* binaries only
// read the sections relevant to them (the router never touches HTTPConfig,
// for instance) but all binaries load the same struct.
type Config struct {
	Service     ServiceConfig
	KV          KVConfig
	Bus         BusConfig
	Database    DatabaseConfig
	HTTP        HTTPConfig
	Integration IntegrationConfig
	Telemetry   TelemetryConfig
}

// ServiceConfig holds process identity and logging settings.
type ServiceConfig struct {
	Name        string
	Environment string
	LogLevel    string
	LogFormat   string
	Namespace   string
}

// KVConfig configures the etcd-backed KV Store Adapter (component A).
type KVConfig struct {
	Endpoints         []string
	DialTimeout       time.Duration
	RequestTimeout    time.Duration
	WatchRetryBudget  int
	WatchRetryBackoff time.Duration
	KeyRoot           string
}

// BusConfig configures the Redis Streams Message Bus Adapter (component B).
type BusConfig struct {
	Addr             string
	Password         string
	DB               int
	ConsumerName     string
	BlockTimeout     time.Duration
	ClaimMinIdleTime time.Duration
}

// DatabaseConfig configures the Postgres-backed ActivityEvent store.
type DatabaseConfig struct {
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	MaxConns    int
	MinConns    int
	MaxIdleTime time.Duration
	MaxLifetime time.Duration
}

// HTTPConfig configures the cmd/controlplane REST/SSE surface.
type HTTPConfig struct {
	Port            int
	ShutdownTimeout time.Duration
}

// IntegrationConfig configures the GitHub external integration adapter
// (component K).
type IntegrationConfig struct {
	GitHubWebhookSecret string
	GitHubFilterCEL     string
	WorkspaceRoot       string
}

// TelemetryConfig configures the pprof/debug surface.
type TelemetryConfig struct {
	EnablePprof bool
	PprofPort   int
}

// Load reads configuration for serviceName from the environment.
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:        serviceName,
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "text"),
			Namespace:   getEnv("ROSTER_NAMESPACE", "default"),
		},
		KV: KVConfig{
			Endpoints:         getEnvSlice("ETCD_ENDPOINTS", []string{"localhost:2379"}),
			DialTimeout:       getEnvDuration("ETCD_DIAL_TIMEOUT", 5*time.Second),
			RequestTimeout:    getEnvDuration("ETCD_REQUEST_TIMEOUT", 5*time.Second),
			WatchRetryBudget:  getEnvInt("ETCD_WATCH_RETRY_BUDGET", 8),
			WatchRetryBackoff: getEnvDuration("ETCD_WATCH_RETRY_BACKOFF", 500*time.Millisecond),
			KeyRoot:           getEnv("ETCD_KEY_ROOT", "/resources"),
		},
		Bus: BusConfig{
			Addr:             getEnv("REDIS_ADDR", "localhost:6379"),
			Password:         getEnv("REDIS_PASSWORD", ""),
			DB:               getEnvInt("REDIS_DB", 0),
			ConsumerName:     getEnv("REDIS_CONSUMER_NAME", hostnameOr(serviceName)),
			BlockTimeout:     getEnvDuration("REDIS_BLOCK_TIMEOUT", 5*time.Second),
			ClaimMinIdleTime: getEnvDuration("REDIS_CLAIM_MIN_IDLE", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:        getEnv("POSTGRES_HOST", "localhost"),
			Port:        getEnvInt("POSTGRES_PORT", 5432),
			Database:    getEnv("POSTGRES_DB", "roster_activity"),
			User:        getEnv("POSTGRES_USER", "roster"),
			Password:    getEnv("POSTGRES_PASSWORD", "roster"),
			MaxConns:    getEnvInt("POSTGRES_MAX_CONNS", 20),
			MinConns:    getEnvInt("POSTGRES_MIN_CONNS", 2),
			MaxIdleTime: getEnvDuration("POSTGRES_MAX_IDLE_TIME", 30*time.Minute),
			MaxLifetime: getEnvDuration("POSTGRES_MAX_LIFETIME", 1*time.Hour),
		},
		HTTP: HTTPConfig{
			Port:            getEnvInt("PORT", 7888),
			ShutdownTimeout: getEnvDuration("HTTP_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Integration: IntegrationConfig{
			GitHubWebhookSecret: getEnv("GITHUB_WEBHOOK_SECRET", ""),
			GitHubFilterCEL:     getEnv("GITHUB_FILTER_CEL", "event.type == 'push' && event.ref == 'refs/heads/main'"),
			WorkspaceRoot:       getEnv("WORKSPACE_ROOT", "/tmp/roster-workspaces"),
		},
		Telemetry: TelemetryConfig{
			EnablePprof: getEnvBool("ENABLE_PPROF", true),
			PprofPort:   getEnvInt("PPROF_PORT", 6060),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks invariants that would otherwise surface as confusing
// runtime errors deep inside a client library.
func (c *Config) Validate() error {
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid http port: %d", c.HTTP.Port)
	}
	if len(c.KV.Endpoints) == 0 {
		return fmt.Errorf("at least one etcd endpoint is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns must be >= min_conns")
	}
	if c.Service.Namespace == "" {
		return fmt.Errorf("namespace must not be empty")
	}
	return nil
}

// DatabaseURL returns the pgx connection string for the activity store.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
	)
}

func hostnameOr(fallback string) string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return fallback
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
