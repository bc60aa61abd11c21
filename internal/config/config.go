package config

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	Environment string
	LogLevel    string

	// Storage
	StoreDriver    string
	DatabaseURL    string
	MigrateOnStart bool
	SeedFile       string

	// Redis
	RedisURL string

	// Server
	Port        string
	FrontendURL string

	// Match settings
	ReaperIntervalMinutes int

	// Security
	JWTSecret string

	// Runtime-tunable match settings, overridable from the runtime_config table
	mu       sync.RWMutex
	tunables Tunables
}

// Tunables are the match settings an admin can change while the server runs
type Tunables struct {
	FirstMatchFree              bool
	SamplerCandidateLimit       int
	CreateMatchRateLimitSeconds int
	StaleMatchHours             int
}

// Tunables returns a consistent snapshot of the runtime-tunable settings
func (c *Config) Tunables() Tunables {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tunables
}

// SetTunables replaces the runtime-tunable settings
func (c *Config) SetTunables(t Tunables) {
	c.mu.Lock()
	c.tunables = t
	c.mu.Unlock()
}

// UpdateTunables applies fn to a copy of the current settings and stores the
// result. Readers never see a partially applied update.
func (c *Config) UpdateTunables(fn func(t *Tunables)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.tunables
	fn(&next)
	c.tunables = next
}

// Store drivers
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		// Environment
		Environment: getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// Storage
		StoreDriver:    strings.ToLower(getEnv("STORE_DRIVER", DriverPostgres)),
		DatabaseURL:    getEnv("DATABASE_URL", "postgres://localhost:5432/almajlis?sslmode=disable"),
		MigrateOnStart: getEnvBool("MIGRATE_ON_START", true),
		SeedFile:       getEnv("SEED_FILE", ""),

		// Redis
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		// Server
		Port:        getEnv("APP_PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),

		// Match settings
		ReaperIntervalMinutes: getEnvInt("REAPER_INTERVAL_MINUTES", 10),

		// Security
		JWTSecret: getEnv("JWT_SECRET", "change-me-in-production"),
	}
	cfg.tunables = Tunables{
		SamplerCandidateLimit:       getEnvInt("SAMPLER_CANDIDATE_LIMIT", 50),
		FirstMatchFree:              getEnvBool("FIRST_MATCH_FREE", true),
		CreateMatchRateLimitSeconds: getEnvInt("CREATE_MATCH_RATE_LIMIT_SECONDS", 2),
		StaleMatchHours:             getEnvInt("STALE_MATCH_HOURS", 12),
	}
	return cfg
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
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
