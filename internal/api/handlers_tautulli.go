// Streamwarden - Plex Session Reconciliation and Subscription Enforcement
// Copyright 2026 Streamwarden contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamwarden/streamwarden

package api

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/streamwarden/streamwarden/internal/cache"
	"github.com/streamwarden/streamwarden/internal/logging"
	"github.com/streamwarden/streamwarden/internal/models"
	syncpkg "github.com/streamwarden/streamwarden/internal/sync"
	"github.com/streamwarden/streamwarden/internal/validation"
)

// topUsersCount is how many rows the top-users endpoint requests from
// Tautulli before sorting.
const topUsersCount = 10

type topUsersQuery struct {
	TimeRange int `validate:"min=1,max=365"`
}

// tautulliImageQuery requires at least one image reference and bounds the
// resize dimensions Tautulli will be asked for.
type tautulliImageQuery struct {
	Img       string `validate:"required_without=RatingKey"`
	RatingKey string `validate:"required_without=Img"`
	Width     int    `validate:"min=0,max=4096"`
	Height    int    `validate:"min=0,max=4096"`
}

// GetTautulliCurrentStreams handles GET /api/v1/tautulli/current-streams.
//
// It proxies Tautulli's get_activity and enriches each stream with TMDB
// artwork, a request-app deep link, and a local user profile link.
func (h *Handler) GetTautulliCurrentStreams(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	ctx := r.Context()

	if h.tautulli == nil {
		rw.ServiceUnavailable("Tautulli is not configured")
		return
	}

	activity, err := h.tautulli.GetActivity(ctx)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("Tautulli get_activity failed")
		rw.ExternalServiceError("Tautulli")
		return
	}

	views := make([]models.TautulliStreamView, 0, len(activity.Sessions))
	for i := range activity.Sessions {
		views = append(views, h.buildStreamView(ctx, &activity.Sessions[i]))
	}

	rw.Success(views)
}

func (h *Handler) buildStreamView(ctx context.Context, s *models.TautulliSession) models.TautulliStreamView {
	view := models.TautulliStreamView{
		SessionID:        s.SessionID,
		User:             s.FriendlyName,
		UserThumb:        tautulliImageProxyURL(s.UserThumb, ""),
		Title:            s.Title,
		GrandparentTitle: s.GrandparentTitle,
		FullTitle:        s.Title,
		Year:             s.Year.String(),
		GrandparentYear:  s.GrandparentYear.String(),
		ViewOffset:       numInt(s.ViewOffset),
		Duration:         numInt(s.Duration),
		LastUpdate:       numInt(s.LastSeen) * 1000,
		PlaybackRate:     numFloat(s.PlaybackRate),
		State:            s.State,
	}
	if view.User == "" {
		view.User = s.Username
	}

	// Episodes search and link by series; movies by their own title.
	searchTitle := s.Title
	searchYear := numInt(s.Year)
	if s.MediaType != "movie" {
		searchTitle = s.GrandparentTitle
		searchYear = numInt(s.GrandparentYear)
		if s.GrandparentTitle != "" {
			view.FullTitle = s.GrandparentTitle + " - " + s.Title
		}
	}

	if e := h.enrich(ctx, s.MediaType, searchTitle, int(searchYear)); e != nil {
		view.Thumb = e.PosterURL
		view.Art = e.BackdropURL
		view.MediaURL = h.appLink(e.MediaURL)
	}
	view.UserProfileLink = h.userProfileLink(ctx, s.Username)

	return view
}

// GetTautulliTopUsers handles GET /api/v1/tautulli/top-users.
//
// It proxies the top_users home stat (duration-ranked), looks up each user's
// most recent watch, enriches it with TMDB, and returns rows sorted by total
// watch duration.
func (h *Handler) GetTautulliTopUsers(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	ctx := r.Context()

	if h.tautulli == nil {
		rw.ServiceUnavailable("Tautulli is not configured")
		return
	}

	q := topUsersQuery{TimeRange: parseIntParam(r.URL.Query().Get("time_range"), 30)}
	if verr := validation.ValidateStruct(&q); verr != nil {
		rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeBadRequest,
			"time_range must be between 1 and 365 days", verr.Details())
		return
	}

	stats, err := h.tautulli.GetTopUsers(ctx, q.TimeRange, topUsersCount)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("Tautulli get_home_stats failed")
		rw.ExternalServiceError("Tautulli")
		return
	}

	// Per-user history and TMDB lookups fan out; each row is independent.
	views := make([]models.TautulliTopUserView, len(stats.Rows))
	var wg sync.WaitGroup
	for i := range stats.Rows {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			views[i] = h.buildTopUserView(ctx, &stats.Rows[i])
		}(i)
	}
	wg.Wait()

	sort.SliceStable(views, func(i, j int) bool {
		return views[i].TotalDurationSeconds > views[j].TotalDurationSeconds
	})

	rw.Success(views)
}

func (h *Handler) buildTopUserView(ctx context.Context, row *models.TautulliTopUserRow) models.TautulliTopUserView {
	durationSecs := numInt(row.TotalDuration)

	view := models.TautulliTopUserView{
		User:                 row.FriendlyName,
		UserThumb:            tautulliImageProxyURL(row.UserThumb, ""),
		TotalPlays:           numInt(row.TotalPlays),
		TotalDurationSeconds: durationSecs,
		TotalDuration:        formatDurationSeconds(durationSecs),
	}
	if view.User == "" {
		view.User = row.User
	}
	if lastPlay := numInt(row.LastPlay); lastPlay > 0 {
		view.LastPlay = time.Unix(lastPlay, 0).UTC().Format("2006-01-02")
	}
	view.UserProfileLink = h.userProfileLink(ctx, row.User)

	history, err := h.tautulli.GetUserHistory(ctx, int(numInt(row.UserID)), 1)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("user", row.User).Msg("Tautulli history lookup failed")
		return view
	}
	if len(history.Data) == 0 {
		return view
	}

	last := history.Data[0]
	lastMedia := &models.TautulliLastMedia{
		Title:            last.Title,
		GrandparentTitle: last.GrandparentTitle,
		Year:             last.Year.String(),
		GrandparentYear:  last.GrandparentYear.String(),
	}

	searchTitle := last.Title
	searchYear := numInt(last.Year)
	if last.MediaType != "movie" {
		searchTitle = last.GrandparentTitle
		searchYear = numInt(last.GrandparentYear)
	}
	if e := h.enrich(ctx, last.MediaType, searchTitle, int(searchYear)); e != nil {
		view.Thumb = e.PosterURL
		view.Art = e.BackdropURL
		lastMedia.MediaURL = h.appLink(e.MediaURL)
	}
	view.LastMedia = lastMedia

	return view
}

// GetTautulliImage handles GET /api/v1/tautulli/imageproxy.
//
// It proxies pms_image_proxy and caches bodies for the image cache TTL.
func (h *Handler) GetTautulliImage(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	ctx := r.Context()

	if h.tautulli == nil {
		rw.ServiceUnavailable("Tautulli is not configured")
		return
	}

	params := r.URL.Query()
	q := tautulliImageQuery{
		Img:       params.Get("img"),
		RatingKey: params.Get("rating_key"),
		Width:     parseIntParam(params.Get("width"), 0),
		Height:    parseIntParam(params.Get("height"), 0),
	}
	if verr := validation.ValidateStruct(&q); verr != nil {
		rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeBadRequest,
			"img or rating_key is required", verr.Details())
		return
	}

	cacheKey := cache.GenerateKey("tautulli_image", q)
	if cached, found := h.imageCache.Get(cacheKey); found {
		if result, ok := cached.(*syncpkg.ImageResult); ok {
			writeImage(w, result)
			return
		}
	}

	result, err := h.tautulli.PMSImageProxy(ctx, q.Img, q.RatingKey, q.Width, q.Height)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("Tautulli image fetch failed")
		rw.ExternalServiceError("Tautulli")
		return
	}

	h.imageCache.Set(cacheKey, result)
	writeImage(w, result)
}

// enrich resolves TMDB artwork for a media item through the metadata cache.
// Failures degrade to nil; proxy endpoints render without artwork rather
// than failing.
func (h *Handler) enrich(ctx context.Context, mediaType, title string, year int) *models.TMDBEnrichment {
	if h.tmdb == nil || title == "" {
		return nil
	}

	key := cache.GenerateKey("tmdb_enrich", struct {
		MediaType string
		Title     string
		Year      int
	}{mediaType, title, year})
	if cached, found := h.metaCache.Get(key); found {
		if e, ok := cached.(*models.TMDBEnrichment); ok {
			return e
		}
	}

	e, err := h.tmdb.Enrich(ctx, mediaType, title, year)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("title", title).Msg("TMDB enrichment failed")
		return nil
	}

	h.metaCache.Set(key, e)
	return e
}

// userProfileLink builds a request-app profile link for a Plex username, or
// empty when the user is unknown locally or no app URL is configured.
func (h *Handler) userProfileLink(ctx context.Context, username string) string {
	if username == "" || h.config.Server.AppURL == "" {
		return ""
	}
	user, err := h.users.FindByPlexUsername(ctx, username)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("username", username).Msg("Local user lookup failed")
		return ""
	}
	if user == nil {
		return ""
	}
	return fmt.Sprintf("%s/users/%d", strings.TrimRight(h.config.Server.AppURL, "/"), user.ID)
}

// appLink prefixes a TMDB media path with the request-app URL.
func (h *Handler) appLink(mediaPath string) string {
	if mediaPath == "" {
		return ""
	}
	return strings.TrimRight(h.config.Server.AppURL, "/") + mediaPath
}

// parseIntParam parses an integer query parameter with a default.
func parseIntParam(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
