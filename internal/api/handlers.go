// Streamwarden - Plex Session Reconciliation and Subscription Enforcement
// Copyright 2026 Streamwarden contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamwarden/streamwarden

package api

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"github.com/streamwarden/streamwarden/internal/cache"
	"github.com/streamwarden/streamwarden/internal/config"
	"github.com/streamwarden/streamwarden/internal/enforcement"
	"github.com/streamwarden/streamwarden/internal/models"
	syncpkg "github.com/streamwarden/streamwarden/internal/sync"
)

// ImageFetcher fetches Plex artwork with a given token. *sync.Factory
// satisfies it.
type ImageFetcher interface {
	GetImage(ctx context.Context, token, path string) (*syncpkg.ImageResult, error)
}

// MetadataService resolves TMDB artwork and deep links for a media item.
// *sync.TMDBClient satisfies it.
type MetadataService interface {
	Enrich(ctx context.Context, mediaType, title string, year int) (*models.TMDBEnrichment, error)
}

// Pinger reports backend liveness for the readiness endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains dependencies for the API handlers.
//
// Handler methods are split across files:
//   - handlers.go: Handler struct, constructor, shared helpers (this file)
//   - handlers_streams.go: resolved stream list + Plex image proxy
//   - handlers_tautulli.go: Tautulli proxy endpoints + Tautulli image proxy
//   - handlers_enforcement.go: job status and manual triggers
//   - handlers_health.go: liveness and readiness
//
// Optional upstreams (tautulli, tmdb) are nil when not configured; handlers
// answer 503 for endpoints whose upstream is missing.
type Handler struct {
	config   *config.Config
	users    enforcement.UserStore
	clients  enforcement.ClientFactory
	images   ImageFetcher
	tautulli syncpkg.TautulliClientInterface
	tmdb     MetadataService
	db       Pinger

	imageCache *cache.Cache
	metaCache  *cache.Cache

	sharing       *enforcement.SharingEnforcer
	subscriptions *enforcement.SubscriptionEnforcer
	sweeper       *enforcement.Sweeper

	startTime time.Time
}

// Jobs bundles the enforcement jobs exposed through the status and trigger
// endpoints. Any of them may be nil when disabled.
type Jobs struct {
	Sharing       *enforcement.SharingEnforcer
	Subscriptions *enforcement.SubscriptionEnforcer
	Sweeper       *enforcement.Sweeper
}

const (
	defaultImageCacheTTL    = 24 * time.Hour
	defaultMetadataCacheTTL = 5 * time.Minute
)

// NewHandler creates the API handler.
//
// users and db usually both point at the same *database.DB; they are
// separate parameters so tests can substitute either. tautulli and tmdb are
// nil when the respective integration is disabled.
func NewHandler(cfg *config.Config, users enforcement.UserStore, db Pinger, clients enforcement.ClientFactory, images ImageFetcher, tautulli syncpkg.TautulliClientInterface, tmdb MetadataService, jobs Jobs) *Handler {
	imageTTL := cfg.API.ImageCacheTTL
	if imageTTL <= 0 {
		imageTTL = defaultImageCacheTTL
	}
	metaTTL := cfg.API.MetadataCacheTTL
	if metaTTL <= 0 {
		metaTTL = defaultMetadataCacheTTL
	}

	return &Handler{
		config:        cfg,
		users:         users,
		clients:       clients,
		images:        images,
		tautulli:      tautulli,
		tmdb:          tmdb,
		db:            db,
		imageCache:    cache.New("images", imageTTL),
		metaCache:     cache.New("metadata", metaTTL),
		sharing:       jobs.Sharing,
		subscriptions: jobs.Subscriptions,
		sweeper:       jobs.Sweeper,
		startTime:     time.Now(),
	}
}

// serviceToken fetches the configured service account's Plex token. Request
// paths use it the same way the enforcement passes do, so token rotation in
// the user store takes effect immediately.
func (h *Handler) serviceToken(ctx context.Context) (string, error) {
	user, err := h.users.FindByID(ctx, h.config.Enforcement.ServiceAccountID)
	if err != nil {
		return "", fmt.Errorf("looking up service account %d: %w", h.config.Enforcement.ServiceAccountID, err)
	}
	if user == nil || user.PlexToken == "" {
		return "", enforcement.ErrPreconditionMissing
	}
	return user.PlexToken, nil
}

// formatMillis renders a millisecond offset as h:mm:ss.
func formatMillis(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	total := ms / 1000
	return fmt.Sprintf("%d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

// formatDurationSeconds renders a second count as "Xh Ym".
func formatDurationSeconds(secs int64) string {
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%dh %dm", secs/3600, (secs%3600)/60)
}

// numInt converts a Tautulli json.Number, which may be empty or quoted, to
// an int64. Unparsable values become zero.
func numInt(n json.Number) int64 {
	v, err := n.Int64()
	if err != nil {
		return 0
	}
	return v
}

// numFloat converts a Tautulli json.Number to a float64, zero on failure.
func numFloat(n json.Number) float64 {
	v, err := n.Float64()
	if err != nil {
		return 0
	}
	return v
}

// imageProxyURL wraps a Plex artwork path in the streams image proxy so the
// browser never needs the Plex token.
func imageProxyURL(path string) string {
	if path == "" {
		return ""
	}
	return "/api/v1/streams/imageproxy?url=" + url.QueryEscape(path)
}

// tautulliImageProxyURL wraps a Tautulli artwork reference in the Tautulli
// image proxy.
func tautulliImageProxyURL(img, ratingKey string) string {
	if img == "" && ratingKey == "" {
		return ""
	}
	q := url.Values{}
	if img != "" {
		q.Set("img", img)
	}
	if ratingKey != "" {
		q.Set("rating_key", ratingKey)
	}
	return "/api/v1/tautulli/imageproxy?" + q.Encode()
}
