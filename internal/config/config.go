package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds process-wide settings. Per-tenant bridge overrides live on
// the Session record; these values are the defaults when a tenant has none.
type Config struct {
	Port string

	// Default bridge endpoint and key, used for tenants without overrides
	BridgeBaseURL string
	BridgeAPIKey  string

	// AI responder endpoint; empty disables automated replies
	ResponderURL    string
	ResponderAPIKey string

	// Background session reconciliation
	SessionSyncInterval time.Duration
}

// Load reads configuration from environment variables. Call godotenv.Load
// before this in local development.
func Load() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		BridgeBaseURL:   os.Getenv("BRIDGE_BASE_URL"),
		BridgeAPIKey:    os.Getenv("BRIDGE_API_KEY"),
		ResponderURL:    os.Getenv("RESPONDER_URL"),
		ResponderAPIKey: os.Getenv("RESPONDER_API_KEY"),
	}

	if cfg.BridgeBaseURL == "" {
		return nil, fmt.Errorf("BRIDGE_BASE_URL is required")
	}

	interval := getEnv("SESSION_SYNC_INTERVAL", "5m")
	d, err := time.ParseDuration(interval)
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_SYNC_INTERVAL %q: %w", interval, err)
	}
	cfg.SessionSyncInterval = d

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
