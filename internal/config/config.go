// Package config loads service configuration from the environment.
// A local .env file is honored in development; real deployments inject
// variables directly.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service configuration.
type Config struct {
	AppEnv   string
	Port     string
	LogLevel string

	DatabaseURL string
	RedisAddr   string
	RedisDB     int

	JWTSecret string

	Timeouts Timeouts
	Undo     UndoPolicy
	Limits   Limits
}

// Timeouts are per-RPC-class statement budgets. A runaway recursive graph
// walk must never hang a connection indefinitely.
type Timeouts struct {
	Read       time.Duration // fast read/aggregation RPCs
	Permission time.Duration // resolver graph walks
	Mutation   time.Duration // single/batch mutations
	Undo       time.Duration // undo and cascade operations
}

// UndoPolicy holds the time windows for the undo engine.
type UndoPolicy struct {
	// AdminWindow is how far back admins may undo any entry.
	AdminWindow time.Duration
	// SelfWindow is how far back an actor may undo their own action.
	SelfWindow time.Duration
	// PermissionCacheTTL bounds staleness of cached permission checks.
	PermissionCacheTTL time.Duration
}

// Limits holds the hard caps on multi-row operations.
type Limits struct {
	BatchSize      int // creates+updates+deletes per batch_save, reorder ops
	MaxDescendants int // cascade delete confirm gate
	MaxDepth       int // generation depth cap for graph walks
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	// Best-effort: absence of .env is normal outside development.
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("APP_PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisAddr:   getEnv("REDIS_ADDR", ""),
		RedisDB:     getEnvInt("REDIS_DB", 0),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		Timeouts: Timeouts{
			Read:       getEnvDuration("TIMEOUT_READ", 2*time.Second),
			Permission: getEnvDuration("TIMEOUT_PERMISSION", 3*time.Second),
			Mutation:   getEnvDuration("TIMEOUT_MUTATION", 5*time.Second),
			Undo:       getEnvDuration("TIMEOUT_UNDO", 10*time.Second),
		},
		Undo: UndoPolicy{
			AdminWindow:        getEnvDuration("UNDO_ADMIN_WINDOW", 7*24*time.Hour),
			SelfWindow:         getEnvDuration("UNDO_SELF_WINDOW", 30*24*time.Hour),
			PermissionCacheTTL: getEnvDuration("PERMISSION_CACHE_TTL", time.Minute),
		},
		Limits: Limits{
			BatchSize:      getEnvInt("BATCH_SIZE_LIMIT", 50),
			MaxDescendants: getEnvInt("CASCADE_MAX_DESCENDANTS", 100),
			MaxDepth:       getEnvInt("GRAPH_MAX_DEPTH", 20),
		},
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
