// Streamwarden - Plex Session Reconciliation and Subscription Enforcement
// Copyright 2026 Streamwarden contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamwarden/streamwarden

package api

import (
	"errors"
	"net/http"

	"github.com/streamwarden/streamwarden/internal/cache"
	"github.com/streamwarden/streamwarden/internal/enforcement"
	"github.com/streamwarden/streamwarden/internal/logging"
	"github.com/streamwarden/streamwarden/internal/models"
	syncpkg "github.com/streamwarden/streamwarden/internal/sync"
	"github.com/streamwarden/streamwarden/internal/validation"
)

// imageProxyQuery constrains the Plex image proxy to relative artwork
// paths so the proxy cannot be pointed at arbitrary hosts.
type imageProxyQuery struct {
	URL string `validate:"required,startswith=/,startsnotwith=//"`
}

// GetStreams handles GET /api/v1/streams.
//
// It lists active Plex sessions, resolves viewer identities against the
// owner and the shared-member list, joins in local user records for email
// and avatar, and returns display-ready StreamInfo entries. A failed member
// listing degrades to raw display names instead of failing the request.
func (h *Handler) GetStreams(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	ctx := r.Context()

	token, err := h.serviceToken(ctx)
	if err != nil {
		if errors.Is(err, enforcement.ErrPreconditionMissing) {
			rw.ServiceUnavailable("Service account is not configured")
			return
		}
		logging.Ctx(ctx).Error().Err(err).Msg("Service token lookup failed")
		rw.DatabaseError()
		return
	}

	plex := h.clients.Plex(token)
	sessions, err := plex.ListActiveSessions(ctx)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("Listing Plex sessions failed")
		rw.ExternalServiceError("Plex")
		return
	}

	// Identity context is best-effort: sessions still render with raw
	// display names when plex.tv or the owner lookup is unreachable.
	owner, err := plex.GetOwnIdentity(ctx)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Owner identity lookup failed, using raw display names")
		owner = nil
	}
	var members []models.AccountMember
	if list, err := h.clients.PlexTV(token).ListAccountMembers(ctx); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Member listing failed, using raw display names")
	} else {
		members = list
	}
	index := enforcement.BuildMemberIndex(members)

	streams := make([]models.StreamInfo, 0, len(sessions))
	for i := range sessions {
		if info, ok := h.buildStreamInfo(r, &sessions[i], index, owner); ok {
			streams = append(streams, info)
		}
	}

	rw.Success(streams)
}

// buildStreamInfo converts one Plex session into its API view. Sessions
// without a session ID or viewer are dropped, matching the behavior of the
// enforcement passes.
func (h *Handler) buildStreamInfo(r *http.Request, s *models.PlexSession, index map[string]models.AccountMember, owner *models.OwnerIdentity) (models.StreamInfo, bool) {
	if s.Session == nil || s.Session.ID == "" {
		return models.StreamInfo{}, false
	}

	var username, email string
	switch {
	case s.User != nil && s.User.Title != "":
		username, email, _ = enforcement.ResolveIdentity(s.User.Title, index, owner)
	case len(s.Usernames) > 0 && s.Usernames[0] != "":
		// Some session payloads omit the User block but still carry the
		// viewer in the usernames list.
		username = s.Usernames[0]
	default:
		return models.StreamInfo{}, false
	}

	info := models.StreamInfo{
		Username:    username,
		Email:       email,
		Title:       s.Title,
		SessionID:   s.Session.ID,
		MediaType:   s.Type,
		CurrentTime: formatMillis(s.ViewOffset),
		TotalTime:   formatMillis(s.Duration),
		ReleaseYear: s.Year,
	}
	if s.Player != nil {
		info.State = s.Player.State
	}

	// Episodes show the series poster; everything else shows its own.
	poster := s.Thumb
	if s.Type == "episode" && s.GrandparentThumb != "" {
		poster = s.GrandparentThumb
	}
	info.PosterURL = imageProxyURL(poster)
	info.BackgroundURL = imageProxyURL(s.Art)
	if s.Type == "episode" {
		info.Title = s.GrandparentTitle + " - " + s.Title
	}

	if user, err := h.users.FindByPlexUsername(r.Context(), username); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Str("username", username).Msg("Local user lookup failed")
	} else if user != nil {
		info.AvatarURL = user.Avatar
		if info.Email == "" {
			info.Email = user.Email
		}
	}

	return info, true
}

// GetStreamImage handles GET /api/v1/streams/imageproxy?url=.
//
// The url parameter must be a relative Plex artwork path; absolute URLs are
// rejected so the proxy cannot be pointed at arbitrary hosts. Bodies are
// cached and served with immutable cache headers, Plex artwork paths being
// content-addressed.
func (h *Handler) GetStreamImage(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	ctx := r.Context()

	path := r.URL.Query().Get("url")
	q := imageProxyQuery{URL: path}
	if verr := validation.ValidateStruct(&q); verr != nil {
		rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeBadRequest,
			"url must be a relative Plex artwork path", verr.Details())
		return
	}

	cacheKey := cache.GenerateKey("plex_image", path)
	if cached, found := h.imageCache.Get(cacheKey); found {
		if img, ok := cached.(*syncpkg.ImageResult); ok {
			writeImage(w, img)
			return
		}
	}

	token, err := h.serviceToken(ctx)
	if err != nil {
		if errors.Is(err, enforcement.ErrPreconditionMissing) {
			rw.ServiceUnavailable("Service account is not configured")
			return
		}
		logging.Ctx(ctx).Error().Err(err).Msg("Service token lookup failed")
		rw.DatabaseError()
		return
	}

	img, err := h.images.GetImage(ctx, token, path)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("path", path).Msg("Plex image fetch failed")
		rw.ExternalServiceError("Plex")
		return
	}

	h.imageCache.Set(cacheKey, img)
	writeImage(w, img)
}

func writeImage(w http.ResponseWriter, img *syncpkg.ImageResult) {
	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Data)
}
