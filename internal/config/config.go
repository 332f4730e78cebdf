// Streamwarden - Plex Session Reconciliation and Subscription Enforcement
// Copyright 2026 Streamwarden contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamwarden/streamwarden

// Package config provides layered configuration loading for Streamwarden.
//
// Configuration is resolved with clear precedence:
//
//	environment variables > YAML config file > built-in defaults
//
// All knobs live on nested structs with koanf tags; see LoadWithKoanf.
package config

import "time"

// Config is the root application configuration.
type Config struct {
	Plex        PlexConfig        `koanf:"plex"`
	Tautulli    TautulliConfig    `koanf:"tautulli"`
	TMDB        TMDBConfig        `koanf:"tmdb"`
	Database    DatabaseConfig    `koanf:"database"`
	Server      ServerConfig      `koanf:"server"`
	API         APIConfig         `koanf:"api"`
	Enforcement EnforcementConfig `koanf:"enforcement"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// PlexConfig holds connection settings for the Plex Media Server and plex.tv.
//
// There is intentionally no token field: the Plex token is read from the
// service account's user record at pass time (see EnforcementConfig), so a
// token rotated through the media-request app is picked up without restart.
type PlexConfig struct {
	// URL is the base URL of the Plex Media Server, e.g. http://plex:32400.
	URL string `koanf:"url"`

	// ClientID identifies this application to plex.tv (X-Plex-Client-Identifier).
	ClientID string `koanf:"client_id"`

	// Product is the X-Plex-Product header value.
	Product string `koanf:"product"`

	// Timeout applies to individual Plex HTTP requests.
	Timeout time.Duration `koanf:"timeout"`

	// PlexTVRateLimit caps requests per second against plex.tv.
	PlexTVRateLimit float64 `koanf:"plextv_rate_limit"`
}

// TautulliConfig holds connection settings for an optional Tautulli instance.
type TautulliConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url"`
	APIKey  string `koanf:"api_key"`

	// Timeout applies to individual Tautulli API requests.
	Timeout time.Duration `koanf:"timeout"`
}

// TMDBConfig holds settings for The Movie Database metadata enrichment.
type TMDBConfig struct {
	Enabled bool   `koanf:"enabled"`
	APIKey  string `koanf:"api_key"`

	// Language is the preferred metadata language (ISO 639-1).
	Language string `koanf:"language"`

	// BaseURL is the TMDB API base URL.
	BaseURL string `koanf:"base_url"`

	// ImageBaseURL is the TMDB image CDN base URL.
	ImageBaseURL string `koanf:"image_base_url"`

	// RateLimit caps requests per second against the TMDB API.
	RateLimit float64 `koanf:"rate_limit"`
}

// DatabaseConfig holds DuckDB settings for the local user store.
type DatabaseConfig struct {
	// Path is the DuckDB database file path.
	Path string `koanf:"path"`

	// MaxMemory limits DuckDB memory usage, e.g. "512MB".
	MaxMemory string `koanf:"max_memory"`

	// Threads limits DuckDB worker threads. 0 = use runtime.NumCPU().
	Threads int `koanf:"threads"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`

	// AppURL is the externally visible base URL of the media-request app,
	// used to build user profile and media deep links in API responses.
	AppURL string `koanf:"app_url"`

	// Environment is "development" or "production".
	Environment string `koanf:"environment"`
}

// APIConfig holds API behavior settings.
type APIConfig struct {
	// RateLimitReqs is the allowed request count per RateLimitWindow per client IP.
	RateLimitReqs int `koanf:"rate_limit_reqs"`

	// RateLimitWindow is the rate limit window duration.
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`

	// CORSOrigins lists allowed CORS origins.
	CORSOrigins []string `koanf:"cors_origins"`

	// ImageCacheTTL controls how long proxied images stay cached.
	ImageCacheTTL time.Duration `koanf:"image_cache_ttl"`

	// MetadataCacheTTL controls how long TMDB and Tautulli lookups stay cached.
	MetadataCacheTTL time.Duration `koanf:"metadata_cache_ttl"`
}

// EnforcementConfig holds settings for the background enforcement jobs.
type EnforcementConfig struct {
	// ServiceAccountID is the local user ID whose stored Plex token is used
	// for all Plex API calls. Must reference an existing user record.
	ServiceAccountID int64 `koanf:"service_account_id"`

	Sharing       SharingConfig       `koanf:"sharing"`
	Subscriptions SubscriptionsConfig `koanf:"subscriptions"`
	Sweep         SweepConfig         `koanf:"sweep"`
}

// SharingConfig controls the duplicate-IP account sharing job.
type SharingConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Interval time.Duration `koanf:"interval"`

	// Reason is the message shown to the viewer when a stream is terminated.
	Reason string `koanf:"reason"`
}

// SubscriptionsConfig controls the expired-subscription stream termination job.
type SubscriptionsConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Interval time.Duration `koanf:"interval"`

	// Reason is the message shown to the viewer when a stream is terminated.
	Reason string `koanf:"reason"`
}

// SweepConfig controls the subscription expiration sweep job.
type SweepConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Interval time.Duration `koanf:"interval"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is json or console.
	Format string `koanf:"format"`

	// Caller includes caller file:line in log output.
	Caller bool `koanf:"caller"`
}
