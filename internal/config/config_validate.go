// Streamwarden - Plex Session Reconciliation and Subscription Enforcement
// Copyright 2026 Streamwarden contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamwarden/streamwarden

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validatePlex(); err != nil {
		return err
	}
	if err := c.validateTautulli(); err != nil {
		return err
	}
	if err := c.validateTMDB(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateEnforcement(); err != nil {
		return err
	}
	return c.validateLogging()
}

// validatePlex validates Plex connection settings.
func (c *Config) validatePlex() error {
	if c.Plex.URL == "" {
		return fmt.Errorf("PLEX_URL is required")
	}
	if err := validateHTTPURL(c.Plex.URL, "PLEX_URL"); err != nil {
		return err
	}
	if c.Plex.Timeout <= 0 {
		return fmt.Errorf("PLEX_TIMEOUT must be positive, got %v", c.Plex.Timeout)
	}
	return nil
}

// validateTautulli validates Tautulli settings (only if enabled).
func (c *Config) validateTautulli() error {
	if !c.Tautulli.Enabled {
		return nil
	}
	if c.Tautulli.URL == "" {
		return fmt.Errorf("TAUTULLI_URL is required when TAUTULLI_ENABLED=true")
	}
	if err := validateHTTPURL(c.Tautulli.URL, "TAUTULLI_URL"); err != nil {
		return err
	}
	if c.Tautulli.APIKey == "" {
		return fmt.Errorf("TAUTULLI_API_KEY is required when TAUTULLI_ENABLED=true")
	}
	return nil
}

// validateTMDB validates TMDB settings (only if enabled).
func (c *Config) validateTMDB() error {
	if !c.TMDB.Enabled {
		return nil
	}
	if c.TMDB.APIKey == "" {
		return fmt.Errorf("TMDB_API_KEY is required when TMDB_ENABLED=true")
	}
	if err := validateHTTPURL(c.TMDB.BaseURL, "TMDB_BASE_URL"); err != nil {
		return err
	}
	return validateHTTPURL(c.TMDB.ImageBaseURL, "TMDB_IMAGE_BASE_URL")
}

// validateServer validates HTTP server settings.
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %v", c.Server.Timeout)
	}
	switch c.Server.Environment {
	case "development", "production":
	default:
		return fmt.Errorf("ENVIRONMENT must be development or production, got %q", c.Server.Environment)
	}
	if c.Server.AppURL != "" {
		return validateHTTPURL(c.Server.AppURL, "APP_URL")
	}
	return nil
}

// validateEnforcement validates the background job settings.
// The service account is required as soon as any job is enabled: every job
// reads its Plex token from that user's record.
func (c *Config) validateEnforcement() error {
	e := &c.Enforcement

	anyEnabled := e.Sharing.Enabled || e.Subscriptions.Enabled || e.Sweep.Enabled
	if anyEnabled && e.ServiceAccountID <= 0 {
		return fmt.Errorf("SERVICE_ACCOUNT_ID must be set to a positive user ID when an enforcement job is enabled")
	}

	if e.Sharing.Enabled {
		if e.Sharing.Interval < time.Second {
			return fmt.Errorf("SHARING_INTERVAL must be at least 1s, got %v", e.Sharing.Interval)
		}
		if strings.TrimSpace(e.Sharing.Reason) == "" {
			return fmt.Errorf("SHARING_REASON must not be empty when sharing enforcement is enabled")
		}
	}
	if e.Subscriptions.Enabled {
		if e.Subscriptions.Interval < time.Second {
			return fmt.Errorf("SUBSCRIPTIONS_INTERVAL must be at least 1s, got %v", e.Subscriptions.Interval)
		}
		if strings.TrimSpace(e.Subscriptions.Reason) == "" {
			return fmt.Errorf("SUBSCRIPTIONS_REASON must not be empty when subscription enforcement is enabled")
		}
	}
	if e.Sweep.Enabled && e.Sweep.Interval < time.Minute {
		return fmt.Errorf("SWEEP_INTERVAL must be at least 1m, got %v", e.Sweep.Interval)
	}

	return nil
}

// validateLogging validates logging settings.
func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, fatal, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

// validateHTTPURL checks that a value parses as an absolute http(s) URL.
func validateHTTPURL(value, name string) error {
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https scheme, got %q", name, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s is missing a host", name)
	}
	return nil
}
