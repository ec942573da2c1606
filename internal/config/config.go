// Package config reads service configuration from environment variables.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all server configuration.
type Config struct {
	Port              int
	DBPath            string
	AuthSecret        string
	GeminiModel       string
	CompletionTimeout time.Duration
	HistoryWindow     int
	AnomalyThreshold  float64
}

// Load reads configuration from the environment, applying defaults.
// An empty AUTH_SECRET disables the JWT middleware (dev mode): the boundary
// then trusts the user_id carried by each request.
func Load() Config {
	return Config{
		Port:              envIntOrDefault("PORT", 8080),
		DBPath:            envOrDefault("DB_PATH", "./data/billchat.db"),
		AuthSecret:        os.Getenv("AUTH_SECRET"),
		GeminiModel:       os.Getenv("GEMINI_MODEL"),
		CompletionTimeout: time.Duration(envIntOrDefault("COMPLETION_TIMEOUT_SECONDS", 30)) * time.Second,
		HistoryWindow:     envIntOrDefault("HISTORY_WINDOW", 10),
		AnomalyThreshold:  envFloatOrDefault("ANOMALY_THRESHOLD", 0.25),
	}
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func envFloatOrDefault(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}
