// Streamwarden - Plex Session Reconciliation and Subscription Enforcement
// Copyright 2026 Streamwarden contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamwarden/streamwarden

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order
// of priority. The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/streamwarden/config.yaml",
	"/etc/streamwarden/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Plex: PlexConfig{
			URL:             "",
			ClientID:        "",
			Product:         "Streamwarden",
			Timeout:         30 * time.Second,
			PlexTVRateLimit: 2,
		},
		Tautulli: TautulliConfig{
			Enabled: false,
			URL:     "",
			APIKey:  "",
			Timeout: 30 * time.Second,
		},
		TMDB: TMDBConfig{
			Enabled:      false,
			APIKey:       "",
			Language:     "fr",
			BaseURL:      "https://api.themoviedb.org/3",
			ImageBaseURL: "https://image.tmdb.org/t/p",
			RateLimit:    4,
		},
		Database: DatabaseConfig{
			Path:      "/data/streamwarden.duckdb",
			MaxMemory: "512MB",
			Threads:   0, // 0 = use runtime.NumCPU()
		},
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        5055,
			Timeout:     30 * time.Second,
			AppURL:      "",
			Environment: "development",
		},
		API: APIConfig{
			RateLimitReqs:    100,
			RateLimitWindow:  1 * time.Minute,
			CORSOrigins:      []string{"*"},
			ImageCacheTTL:    24 * time.Hour,
			MetadataCacheTTL: 5 * time.Minute,
		},
		Enforcement: EnforcementConfig{
			ServiceAccountID: 0,
			Sharing: SharingConfig{
				Enabled:  false,
				Interval: 30 * time.Second,
				Reason:   "Activité suspecte détectée. Vos sessions Plex ont été arrêtées en raison d'une tentative de partage de compte.",
			},
			Subscriptions: SubscriptionsConfig{
				Enabled:  false,
				Interval: 30 * time.Second,
				Reason:   "Votre abonnement a expiré. Veuillez le renouveler pour continuer à regarder.",
			},
			Sweep: SweepConfig{
				Enabled:  false,
				Interval: 1 * time.Hour,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML config file (if it exists)
//  3. Environment variables: override any setting
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Env vars arrive as strings; split known slice fields on commas.
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths are parsed as comma-separated slices.
var sliceConfigPaths = []string{
	"api.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML file): nothing to do.
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
//
// Examples:
//   - PLEX_URL           -> plex.url
//   - TAUTULLI_API_KEY   -> tautulli.api_key
//   - SHARING_ENABLED    -> enforcement.sharing.enabled
//   - HTTP_PORT          -> server.port
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Plex mappings
		"plex_url":             "plex.url",
		"plex_client_id":       "plex.client_id",
		"plex_product":         "plex.product",
		"plex_timeout":         "plex.timeout",
		"plextv_rate_limit":    "plex.plextv_rate_limit",

		// Tautulli mappings
		"tautulli_enabled": "tautulli.enabled",
		"tautulli_url":     "tautulli.url",
		"tautulli_api_key": "tautulli.api_key",
		"tautulli_timeout": "tautulli.timeout",

		// TMDB mappings
		"tmdb_enabled":        "tmdb.enabled",
		"tmdb_api_key":        "tmdb.api_key",
		"tmdb_language":       "tmdb.language",
		"tmdb_base_url":       "tmdb.base_url",
		"tmdb_image_base_url": "tmdb.image_base_url",
		"tmdb_rate_limit":     "tmdb.rate_limit",

		// Database mappings
		"duckdb_path":       "database.path",
		"duckdb_max_memory": "database.max_memory",
		"duckdb_threads":    "database.threads",

		// Server mappings
		"http_port":    "server.port",
		"http_host":    "server.host",
		"http_timeout": "server.timeout",
		"app_url":      "server.app_url",
		"environment":  "server.environment",

		// API mappings
		"rate_limit_requests": "api.rate_limit_reqs",
		"rate_limit_window":   "api.rate_limit_window",
		"cors_origins":        "api.cors_origins",
		"image_cache_ttl":     "api.image_cache_ttl",
		"metadata_cache_ttl":  "api.metadata_cache_ttl",

		// Enforcement mappings
		"service_account_id":     "enforcement.service_account_id",
		"sharing_enabled":        "enforcement.sharing.enabled",
		"sharing_interval":       "enforcement.sharing.interval",
		"sharing_reason":         "enforcement.sharing.reason",
		"subscriptions_enabled":  "enforcement.subscriptions.enabled",
		"subscriptions_interval": "enforcement.subscriptions.interval",
		"subscriptions_reason":   "enforcement.subscriptions.reason",
		"sweep_enabled":          "enforcement.sweep.enabled",
		"sweep_interval":         "enforcement.sweep.interval",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// Unmapped keys are skipped so random environment variables do not
	// pollute the config.
	return ""
}
