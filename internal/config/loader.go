package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Load loads configuration from an optional JSON file and applies
// environment variable overrides on top of the defaults.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if err := loadFromFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	applyEnvironmentOverrides(cfg)
	return cfg, nil
}

// loadFromFile merges a JSON file over cfg in place.
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides applies configuration from environment
// variables. Only operational knobs are exposed this way; business policy
// lives in the config file.
func applyEnvironmentOverrides(cfg *Config) {
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.Server.HTTPAddr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Server.DatabaseURL = v
	}
	if v := os.Getenv("JWT_HS256_SECRET"); v != "" {
		cfg.Server.JWTSecret = v
	}
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		cfg.Server.AdminToken = v
	}
	if v := os.Getenv("DEV_MODE"); v == "true" || v == "1" {
		cfg.Server.DevMode = true
	}
	if v := os.Getenv("FRIEND_REQUEST_EXPIRE_AFTER_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.FriendRequest.ExpireAfterSeconds = n
		}
	}
}
