package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseDriver string        // Optional: "sqlite" or "postgres" (default: sqlite)
	DatabaseDSN    string        // Optional: driver DSN (default: ./auth.db)
	UserTable      string        // Optional: name of the user table (default: users)
	TokenLength    int           // Optional: issued token length (default: 8)
	TokenTTL       time.Duration // Optional: token validity window (default: 24h)

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	return Config{
		DatabaseDriver:      getEnvOrDefault("AUTH_DB_DRIVER", "sqlite"),
		DatabaseDSN:         getEnvOrDefault("AUTH_DB_DSN", "auth.db"),
		UserTable:           getEnvOrDefault("AUTH_USER_TABLE", "users"),
		TokenLength:         getEnvIntOrDefault("AUTH_TOKEN_LENGTH", 8),
		TokenTTL:            getEnvDurationOrDefault("AUTH_TOKEN_TTL", 24*time.Hour),
		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
