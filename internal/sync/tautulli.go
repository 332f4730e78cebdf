// Streamwarden - Plex Session Reconciliation and Subscription Enforcement
// Copyright 2026 Streamwarden contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamwarden/streamwarden

/*
tautulli.go - Tautulli API Client

This file provides the TautulliClient for interacting with Tautulli's
REST API.

Client Features:
  - HTTP client with configurable timeout
  - API key authentication
  - Automatic HTTP 429 rate limit handling with exponential backoff
  - JSON response envelope validation
  - Context support for cancellation and timeouts

Every Tautulli response is wrapped in a common envelope:

	{"response": {"result": "success", "message": null, "data": {...}}}

makeRequest() validates the envelope before decoding data, so callers only
see domain errors, never half-parsed payloads.

API commands used:
  - get_activity: current playback sessions with stream details
  - get_home_stats: aggregated statistics (top users by watch time)
  - get_history: per-user playback history
  - pms_image_proxy: image proxying through Tautulli's cache

Related Files:
  - tautulli_breaker.go: circuit breaker wrapper around this client
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/streamwarden/streamwarden/internal/config"
	"github.com/streamwarden/streamwarden/internal/metrics"
	"github.com/streamwarden/streamwarden/internal/models"
)

// maxErrorBodySize limits the maximum amount of response body read for error
// reporting. This prevents unbounded memory allocation when reading large
// error responses.
const maxErrorBodySize = 64 * 1024 // 64KB

// topUsersStatID is the stat block identifier inside get_home_stats output.
const topUsersStatID = "top_users"

// readBodyForError reads the response body for error reporting (max 64KB).
func readBodyForError(r io.Reader) []byte {
	limitedReader := io.LimitReader(r, maxErrorBodySize)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}

// TautulliClientInterface defines the Tautulli API operations Streamwarden
// uses. It is implemented by TautulliClient for production use, by
// CircuitBreakerClient which wraps it, and by mocks for testing.
//
// All methods accept a context for cancellation and are safe for concurrent
// use.
type TautulliClientInterface interface {
	Ping(ctx context.Context) error
	GetActivity(ctx context.Context) (*models.TautulliActivity, error)
	GetTopUsers(ctx context.Context, timeRange, statsCount int) (*models.TautulliHomeStats, error)
	GetUserHistory(ctx context.Context, userID, length int) (*models.TautulliHistory, error)
	PMSImageProxy(ctx context.Context, img, ratingKey string, width, height int) (*ImageResult, error)
}

// ImageResult is a proxied image payload with its content type.
type ImageResult struct {
	Data        []byte
	ContentType string
}

// TautulliClient handles communication with the Tautulli HTTP API.
//
// Thread safety: safe for concurrent use. Each request creates its own HTTP
// request.
type TautulliClient struct {
	baseURL        string
	apiKey         string
	client         *http.Client
	maxRetries     int           // maximum retries for rate limiting
	retryBaseDelay time.Duration // base delay for exponential backoff
}

// NewTautulliClient creates a new Tautulli API client.
func NewTautulliClient(cfg *config.TautulliConfig) *TautulliClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &TautulliClient{
		baseURL: cfg.URL,
		apiKey:  cfg.APIKey,
		client: &http.Client{
			Timeout: timeout,
		},
		maxRetries:     5,
		retryBaseDelay: 1 * time.Second,
	}
}

// tautulliEnvelope is the common wrapper around every Tautulli response.
type tautulliEnvelope struct {
	Response struct {
		Result  string          `json:"result"`
		Message *string         `json:"message"`
		Data    json.RawMessage `json:"data"`
	} `json:"response"`
}

// doRequestWithRateLimit performs an HTTP request with automatic rate limit
// handling. Implements exponential backoff for HTTP 429 responses
// (1s, 2s, 4s, 8s, 16s). The context is used for cancellation during
// backoff waits.
func (c *TautulliClient) doRequestWithRateLimit(ctx context.Context, reqURL string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("HTTP request failed: %w", err)
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		_ = resp.Body.Close()

		if attempt == c.maxRetries {
			lastErr = fmt.Errorf("rate limit exceeded after %d retries (HTTP 429)", c.maxRetries)
			break
		}

		delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))

		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
				delay = seconds
			}
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

// makeRequest handles common Tautulli API request boilerplate. It builds
// the URL with API key and command, makes the request, checks HTTP status,
// validates the Tautulli response envelope, and decodes the data payload
// into result.
func (c *TautulliClient) makeRequest(ctx context.Context, cmd string, params url.Values, result interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("apikey", c.apiKey)
	params.Set("cmd", cmd)

	reqURL := fmt.Sprintf("%s/api/v2?%s", c.baseURL, params.Encode())

	start := time.Now()
	resp, err := c.doRequestWithRateLimit(ctx, reqURL)
	metrics.RecordUpstreamRequest("tautulli", cmd, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to make %s request: %w", cmd, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body := readBodyForError(resp.Body)
		return fmt.Errorf("%s request failed with status %d: %s", cmd, resp.StatusCode, string(body))
	}

	var envelope tautulliEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", cmd, err)
	}

	if envelope.Response.Result != "success" {
		msg := "unknown error"
		if envelope.Response.Message != nil {
			msg = *envelope.Response.Message
		}
		return fmt.Errorf("%s request failed: %s", cmd, msg)
	}

	if result != nil {
		if err := json.Unmarshal(envelope.Response.Data, result); err != nil {
			return fmt.Errorf("failed to decode %s data: %w", cmd, err)
		}
	}

	return nil
}

// Ping verifies connectivity to the Tautulli API.
func (c *TautulliClient) Ping(ctx context.Context) error {
	params := url.Values{}
	params.Set("apikey", c.apiKey)
	params.Set("cmd", "arnold")

	reqURL := fmt.Sprintf("%s/api/v2?%s", c.baseURL, params.Encode())

	resp, err := c.doRequestWithRateLimit(ctx, reqURL)
	if err != nil {
		return fmt.Errorf("failed to ping Tautulli: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Tautulli ping failed with status: %d", resp.StatusCode)
	}

	return nil
}

// GetActivity returns the current playback sessions.
func (c *TautulliClient) GetActivity(ctx context.Context) (*models.TautulliActivity, error) {
	var activity models.TautulliActivity
	if err := c.makeRequest(ctx, "get_activity", nil, &activity); err != nil {
		return nil, err
	}
	return &activity, nil
}

// GetTopUsers returns the top-users stat block aggregated by watch
// duration over the given time range in days.
func (c *TautulliClient) GetTopUsers(ctx context.Context, timeRange, statsCount int) (*models.TautulliHomeStats, error) {
	params := url.Values{}
	params.Set("time_range", strconv.Itoa(timeRange))
	params.Set("stats_type", "duration")
	params.Set("stats_count", strconv.Itoa(statsCount))

	var stats []models.TautulliHomeStats
	if err := c.makeRequest(ctx, "get_home_stats", params, &stats); err != nil {
		return nil, err
	}

	for i := range stats {
		if stats[i].StatID == topUsersStatID {
			return &stats[i], nil
		}
	}
	return &models.TautulliHomeStats{StatID: topUsersStatID}, nil
}

// GetUserHistory returns the most recent playback history rows for a user.
func (c *TautulliClient) GetUserHistory(ctx context.Context, userID, length int) (*models.TautulliHistory, error) {
	params := url.Values{}
	params.Set("user_id", strconv.Itoa(userID))
	params.Set("length", strconv.Itoa(length))

	var history models.TautulliHistory
	if err := c.makeRequest(ctx, "get_history", params, &history); err != nil {
		return nil, err
	}
	return &history, nil
}

// PMSImageProxy fetches an image through Tautulli's Plex image proxy.
// Tautulli caches proxied images server-side for a day, which keeps
// repeated poster loads off the media server.
func (c *TautulliClient) PMSImageProxy(ctx context.Context, img, ratingKey string, width, height int) (*ImageResult, error) {
	params := url.Values{}
	params.Set("apikey", c.apiKey)
	params.Set("cmd", "pms_image_proxy")
	if img != "" {
		params.Set("img", img)
	}
	if ratingKey != "" {
		params.Set("rating_key", ratingKey)
	}
	if width > 0 {
		params.Set("width", strconv.Itoa(width))
	}
	if height > 0 {
		params.Set("height", strconv.Itoa(height))
	}
	params.Set("fallback", "poster")

	reqURL := fmt.Sprintf("%s/api/v2?%s", c.baseURL, params.Encode())

	start := time.Now()
	resp, err := c.doRequestWithRateLimit(ctx, reqURL)
	metrics.RecordUpstreamRequest("tautulli", "pms_image_proxy", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to proxy image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image proxy failed with status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	return &ImageResult{Data: data, ContentType: contentType}, nil
}
