// internal/config/config.go
// Centralized configuration management
// Loads from environment variables with sensible defaults

package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all client configuration
type Config struct {
	// Backend
	APIBaseURL string
	SocketURL  string

	// HTTP
	RequestTimeout time.Duration

	// Session
	TokenPath string

	// Feed
	FeedLimit int

	// Chat
	TypingExpiry time.Duration

	// Telemetry; empty disables the /metrics listener
	MetricsAddr string

	Environment string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		APIBaseURL:     getEnv("API_BASE_URL", "http://localhost:5000/api"),
		SocketURL:      getEnv("SOCKET_URL", "ws://localhost:5000/ws"),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", "15s"),
		TokenPath:      getEnv("TOKEN_PATH", defaultTokenPath()),
		FeedLimit:      getEnvInt("FEED_LIMIT", 50),
		TypingExpiry:   getEnvDuration("TYPING_EXPIRY", "1s"),
		MetricsAddr:    getEnv("METRICS_ADDR", ""),
		Environment:    getEnv("ENVIRONMENT", "development"),
	}
}

func defaultTokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cafemeetups_token"
	}
	return filepath.Join(home, ".cafemeetups", "token")
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable
func getEnvDuration(key, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	d, _ := time.ParseDuration(defaultValue)
	return d
}
