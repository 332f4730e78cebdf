// Streamwarden - Plex Session Reconciliation and Subscription Enforcement
// Copyright 2026 Streamwarden contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamwarden/streamwarden

/*
plextv.go - plex.tv Account API Client

This file provides the PlexTVClient for reading the account's friend list
from the plex.tv API. Friends are the users the server is shared with, and
their entries carry the display-name-to-username mapping that session
records lack.

API Endpoints:
  - GET https://plex.tv/api/v2/friends - List friends

All requests require a valid Plex authentication token.
*/

package sync

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/streamwarden/streamwarden/internal/config"
	"github.com/streamwarden/streamwarden/internal/metrics"
	"github.com/streamwarden/streamwarden/internal/models"
)

const (
	// PlexTVBaseURL is the base URL for plex.tv API endpoints
	PlexTVBaseURL = "https://plex.tv"

	// PlexTVClientTimeout is the HTTP client timeout for plex.tv requests
	PlexTVClientTimeout = 30 * time.Second

	// defaultPlexTVRateLimit caps requests per second when the configuration
	// does not set one. plex.tv throttles aggressively compared to a local
	// media server.
	defaultPlexTVRateLimit = 2.0
)

// PlexTVClient handles communication with the plex.tv account API.
type PlexTVClient struct {
	token      string
	clientID   string // X-Plex-Client-Identifier
	product    string // X-Plex-Product
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewPlexTVClient creates a client for the plex.tv API bound to a token.
func NewPlexTVClient(cfg *config.PlexConfig, token string) *PlexTVClient {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "streamwarden"
	}
	product := cfg.Product
	if product == "" {
		product = "Streamwarden"
	}
	limit := cfg.PlexTVRateLimit
	if limit <= 0 {
		limit = defaultPlexTVRateLimit
	}

	return &PlexTVClient{
		token:    token,
		clientID: clientID,
		product:  product,
		baseURL:  PlexTVBaseURL,
		httpClient: &http.Client{
			Timeout: PlexTVClientTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(limit), 1),
	}
}

// ListAccountMembers returns the users the account shares its server with.
//
// Only accepted friends carry a usable username mapping; pending invites are
// returned by plex.tv with empty usernames and are filtered out here.
func (c *PlexTVClient) ListAccountMembers(ctx context.Context) ([]models.AccountMember, error) {
	start := time.Now()
	var friends []models.PlexFriend
	err := c.doRequest(ctx, http.MethodGet, "/api/v2/friends", &friends)
	metrics.RecordUpstreamRequest("plextv", "list_friends", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}

	members := make([]models.AccountMember, 0, len(friends))
	for _, friend := range friends {
		if friend.Username == "" {
			continue
		}
		displayName := friend.Title
		if displayName == "" {
			displayName = friend.Username
		}
		members = append(members, models.AccountMember{
			DisplayName: displayName,
			Username:    friend.Username,
			Email:       friend.Email,
		})
	}
	return members, nil
}

// doRequest executes an HTTP request against the plex.tv API
func (c *PlexTVClient) doRequest(ctx context.Context, method, path string, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("X-Plex-Token", c.token)
	req.Header.Set("X-Plex-Client-Identifier", c.clientID)
	req.Header.Set("X-Plex-Product", c.product)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("API error: %d %s", resp.StatusCode, resp.Status)
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}
