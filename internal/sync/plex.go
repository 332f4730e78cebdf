// Streamwarden - Plex Session Reconciliation and Subscription Enforcement
// Copyright 2026 Streamwarden contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamwarden/streamwarden

/*
plex.go - Plex Media Server API Client

This file provides the PlexClient for communicating with a Plex Media
Server's REST API.

PlexClient Features:
  - X-Plex-Token authentication
  - Automatic rate limit handling with exponential backoff
  - JSON response parsing (Accept: application/json)

API Methods in this file:
  - ListActiveSessions(): Fetch all active playback sessions
  - GetOwnIdentity(): Fetch the server owner's account identity
  - TerminateSession(): Stop a playback session with a viewer-visible reason
  - GetImage(): Fetch an artwork asset for the image proxy

Related Files:
  - plex_request.go: HTTP request helpers
  - plextv.go: plex.tv account API client
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/streamwarden/streamwarden/internal/config"
	"github.com/streamwarden/streamwarden/internal/logging"
	"github.com/streamwarden/streamwarden/internal/metrics"
	"github.com/streamwarden/streamwarden/internal/models"
)

// defaultPlexTimeout is used when the configuration does not set one.
const defaultPlexTimeout = 30 * time.Second

// PlexClient handles communication with a Plex Media Server.
//
// A client is bound to a single token. Because tokens live in the user
// store rather than the configuration, callers obtain a client through the
// Factory per pass instead of holding one long-term.
type PlexClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewPlexClient creates a Plex Media Server client for the given token.
func NewPlexClient(cfg *config.PlexConfig, token string) *PlexClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultPlexTimeout
	}
	return &PlexClient{
		baseURL: cfg.URL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ListActiveSessions fetches all currently playing sessions.
//
// Endpoint: GET /status/sessions
func (c *PlexClient) ListActiveSessions(ctx context.Context) ([]models.PlexSession, error) {
	start := time.Now()
	var sessionsResp models.PlexSessionsResponse
	err := c.doJSONRequest(ctx, "/status/sessions", &sessionsResp)
	metrics.RecordUpstreamRequest("plex", "list_sessions", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	return sessionsResp.MediaContainer.Metadata, nil
}

// GetOwnIdentity fetches the account identity behind the client's token.
//
// For the server owner this returns the owner's display title, username and
// email, which session records reference by display title only.
//
// Endpoint: GET /myplex/account
func (c *PlexClient) GetOwnIdentity(ctx context.Context) (*models.OwnerIdentity, error) {
	start := time.Now()
	var accountResp models.PlexAccountResponse
	err := c.doJSONRequest(ctx, "/myplex/account", &accountResp)
	metrics.RecordUpstreamRequest("plex", "own_identity", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("fetch account identity: %w", err)
	}
	return &models.OwnerIdentity{
		Title:    accountResp.MediaContainer.Title,
		Username: accountResp.MediaContainer.Username,
		Email:    accountResp.MediaContainer.Email,
	}, nil
}

// TerminateSession stops a playback session. The reason is displayed to the
// viewer by their Plex client.
//
// Endpoint: GET /status/sessions/terminate
func (c *PlexClient) TerminateSession(ctx context.Context, sessionID, reason string) error {
	query := url.Values{}
	query.Set("sessionId", sessionID)
	query.Set("reason", reason)

	start := time.Now()
	err := c.doRequest(ctx, requestConfig{
		method:      http.MethodGet,
		path:        "/status/sessions/terminate",
		query:       query,
		expectNoErr: true,
	}, nil)
	metrics.RecordUpstreamRequest("plex", "terminate_session", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("terminate session %s: %w", sessionID, err)
	}

	logging.Ctx(ctx).Info().Str("session_id", sessionID).Msg("Plex session terminated")
	return nil
}

// maxImageBodySize caps artwork downloads at 10MB.
const maxImageBodySize = 10 * 1024 * 1024

// GetImage fetches an artwork asset from the Plex server. The path is a
// relative thumb/art path from a session record, for example
// "/library/metadata/123/thumb/456".
func (c *PlexClient) GetImage(ctx context.Context, path string) (*ImageResult, error) {
	reqURL := fmt.Sprintf("%s%s", c.baseURL, path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Plex-Token", c.token)

	start := time.Now()
	resp, err := c.doRequestWithRateLimit(req)
	metrics.RecordUpstreamRequest("plex", "image", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBodySize))
	if err != nil {
		return nil, fmt.Errorf("read image body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	return &ImageResult{Data: data, ContentType: contentType}, nil
}

// doRequestWithRateLimit executes an HTTP request with automatic retry on
// rate limiting (HTTP 429).
//
//   - Max 5 retry attempts
//   - Exponential backoff: 1s, 2s, 4s, 8s, 16s
//   - Respects Retry-After header (RFC 6585) if present
func (c *PlexClient) doRequestWithRateLimit(req *http.Request) (*http.Response, error) {
	const maxRetries = 5
	baseDelay := 1 * time.Second

	for attempt := 0; attempt <= maxRetries; attempt++ {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("execute request: %w", err)
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		resp.Body.Close()

		if attempt == maxRetries {
			return nil, fmt.Errorf("rate limit exceeded after %d retries", maxRetries)
		}

		retryDelay := baseDelay * (1 << attempt)

		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
				retryDelay = seconds
			}
		}

		logging.Warn().Dur("retry_delay", retryDelay).Int("attempt", attempt+1).Int("max_retries", maxRetries).Msg("Plex API rate limited (HTTP 429), retrying")

		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(retryDelay):
		}
	}

	return nil, fmt.Errorf("unreachable code: retry loop should return or error")
}
