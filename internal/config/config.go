package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyDefaults sets default values for unset fields
func applyDefaults(cfg *Config) {
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = DefaultAPIBaseURL
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.Wait == 0 {
		cfg.Wait = DefaultWait
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.RequestSlack == 0 {
		cfg.RequestSlack = DefaultRequestSlack
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.DedupCacheSize == 0 {
		cfg.DedupCacheSize = DefaultDedupCacheSize
	}
}

// validate checks the configuration for errors
func validate(cfg *Config) error {
	if cfg.Token == "" {
		return errors.New("token is required")
	}

	if cfg.GroupID <= 0 {
		return errors.New("groupId must be positive")
	}

	// VK holds a long poll request for at most 90 seconds
	if cfg.Wait < 1 || cfg.Wait > 90 {
		return fmt.Errorf("wait must be between 1 and 90 seconds")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("logLevel must be one of: debug, info, warn, error")
	}

	if cfg.RetryDelay < 0 {
		return fmt.Errorf("retryDelay must be non-negative")
	}

	if cfg.RequestSlack < 0 {
		return fmt.Errorf("requestSlack must be non-negative")
	}

	if cfg.RequestTimeout < 0 {
		return fmt.Errorf("requestTimeout must be non-negative")
	}

	if cfg.DedupCacheSize < -1 {
		return fmt.Errorf("dedupCacheSize must be -1, 0 or positive")
	}

	if cfg.Plugins != nil && cfg.Plugins.Enabled {
		if cfg.Plugins.Timeout < 0 {
			return fmt.Errorf("plugins.timeout must be non-negative")
		}
	}

	return nil
}
