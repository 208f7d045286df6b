package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds the application configuration
type Config struct {
	Environment        string
	ServerPort         int
	LogLevel           string
	CORSAllowedOrigins []string

	JWTSecret string
	JWTIssuer string
	TokenTTL  time.Duration

	Store    string
	Database DatabaseConfig
	RedisURL string

	RateLimitRequests int64
	RateLimitWindow   time.Duration
	RateLimitDisabled bool

	SeedAdminEmail    string
	SeedAdminPassword string

	StatsInterval time.Duration
}

// DatabaseConfig holds the Postgres connection settings
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
}

// Load reads configuration from environment variables, after loading a .env
// file from the working directory when one exists
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	port, err := strconv.Atoi(getEnv("SERVER_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	ttlMinutes, err := strconv.Atoi(getEnv("TOKEN_TTL_MINUTES", "60"))
	if err != nil || ttlMinutes <= 0 {
		return nil, fmt.Errorf("invalid TOKEN_TTL_MINUTES: %q", os.Getenv("TOKEN_TTL_MINUTES"))
	}

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	maxOpen, err := strconv.Atoi(getEnv("DB_MAX_OPEN_CONNS", "25"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_OPEN_CONNS: %w", err)
	}

	rlRequests, err := strconv.ParseInt(getEnv("RATE_LIMIT_REQUESTS", "100"), 10, 64)
	if err != nil || rlRequests <= 0 {
		return nil, fmt.Errorf("invalid RATE_LIMIT_REQUESTS: %q", os.Getenv("RATE_LIMIT_REQUESTS"))
	}

	rlWindow, err := strconv.Atoi(getEnv("RATE_LIMIT_WINDOW_MINUTES", "15"))
	if err != nil || rlWindow <= 0 {
		return nil, fmt.Errorf("invalid RATE_LIMIT_WINDOW_MINUTES: %q", os.Getenv("RATE_LIMIT_WINDOW_MINUTES"))
	}

	environment := getEnv("ENVIRONMENT", "development")
	rlDisabled, err := strconv.ParseBool(getEnv("RATE_LIMIT_DISABLED", strconv.FormatBool(environment == "test")))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_DISABLED: %w", err)
	}

	statsSeconds, err := strconv.Atoi(getEnv("STATS_INTERVAL_SECONDS", "60"))
	if err != nil || statsSeconds <= 0 {
		return nil, fmt.Errorf("invalid STATS_INTERVAL_SECONDS: %q", os.Getenv("STATS_INTERVAL_SECONDS"))
	}

	store := strings.ToLower(getEnv("STORE", StorePostgres))
	if store != StorePostgres && store != StoreMemory {
		return nil, fmt.Errorf("invalid STORE %q: expected %s or %s", store, StorePostgres, StoreMemory)
	}

	cfg := &Config{
		Environment:        environment,
		ServerPort:         port,
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: parseCSVEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		JWTIssuer:          getEnv("JWT_ISSUER", "leavedesk"),
		TokenTTL:           time.Duration(ttlMinutes) * time.Minute,
		Store:              store,
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         dbPort,
			User:         getEnv("DB_USER", "leavedesk"),
			Password:     getEnv("DB_PASSWORD", "dev"),
			Name:         getEnv("DB_NAME", "leavedesk"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: maxOpen,
		},
		RedisURL:          os.Getenv("REDIS_URL"),
		RateLimitRequests: rlRequests,
		RateLimitWindow:   time.Duration(rlWindow) * time.Minute,
		RateLimitDisabled: rlDisabled,
		SeedAdminEmail:    os.Getenv("SEED_ADMIN_EMAIL"),
		SeedAdminPassword: os.Getenv("SEED_ADMIN_PASSWORD"),
		StatsInterval:     time.Duration(statsSeconds) * time.Second,
	}

	if cfg.JWTSecret == "" && cfg.Environment == "production" {
		return nil, fmt.Errorf("JWT_SECRET is required in production")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseCSVEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
