// Streamwarden - Plex Session Reconciliation and Subscription Enforcement
// Copyright 2026 Streamwarden contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamwarden/streamwarden

/*
tmdb.go - The Movie Database API Client

This file provides the TMDBClient for enriching Tautulli session and
history rows with posters, backdrops and request-app deep-link paths.

API Endpoints:
  - GET /search/movie - Search movies by title and release year
  - GET /search/tv - Search TV shows by title and first-air year
  - GET /movie/{id} - Movie details
  - GET /tv/{id} - TV show details

TV searches retry without the year filter when the filtered search comes
back empty: Tautulli reports the episode's air year, which often differs
from the show's first-air year.
*/

package sync

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/streamwarden/streamwarden/internal/config"
	"github.com/streamwarden/streamwarden/internal/metrics"
	"github.com/streamwarden/streamwarden/internal/models"
)

const (
	// DefaultTMDBBaseURL is the TMDB API v3 base URL.
	DefaultTMDBBaseURL = "https://api.themoviedb.org/3"

	// DefaultTMDBImageBaseURL is the TMDB image CDN base URL.
	DefaultTMDBImageBaseURL = "https://media.themoviedb.org/t/p"

	// tmdbPosterSize and tmdbBackdropSize are the CDN size segments used
	// for enrichment URLs.
	tmdbPosterSize   = "w600_and_h900_bestv2"
	tmdbBackdropSize = "w1920_and_h800_multi_faces"

	// defaultTMDBRateLimit caps requests per second when the configuration
	// does not set one.
	defaultTMDBRateLimit = 10.0
)

// TMDBClient handles communication with The Movie Database API v3.
//
// Thread safety: safe for concurrent use.
type TMDBClient struct {
	baseURL      string
	imageBaseURL string
	apiKey       string
	language     string
	httpClient   *http.Client
	limiter      *rate.Limiter
}

// NewTMDBClient creates a TMDB API client.
func NewTMDBClient(cfg *config.TMDBConfig) *TMDBClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultTMDBBaseURL
	}
	imageBaseURL := cfg.ImageBaseURL
	if imageBaseURL == "" {
		imageBaseURL = DefaultTMDBImageBaseURL
	}
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = defaultTMDBRateLimit
	}

	return &TMDBClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		imageBaseURL: strings.TrimRight(imageBaseURL, "/"),
		apiKey:       cfg.APIKey,
		language:     cfg.Language,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(limit), 1),
	}
}

// SearchMovies searches for movies by title, optionally filtered by release
// year (0 means no filter).
func (c *TMDBClient) SearchMovies(ctx context.Context, query string, year int) (*models.TMDBSearchResponse, error) {
	params := url.Values{}
	params.Set("query", query)
	if year > 0 {
		params.Set("primary_release_year", strconv.Itoa(year))
	}

	var result models.TMDBSearchResponse
	if err := c.doRequest(ctx, "/search/movie", params, &result); err != nil {
		return nil, fmt.Errorf("search movies: %w", err)
	}
	return &result, nil
}

// SearchTVShows searches for TV shows by title, optionally filtered by
// first-air year (0 means no filter). An empty filtered result retries
// without the year.
func (c *TMDBClient) SearchTVShows(ctx context.Context, query string, year int) (*models.TMDBSearchResponse, error) {
	params := url.Values{}
	params.Set("query", query)
	if year > 0 {
		params.Set("first_air_date_year", strconv.Itoa(year))
	}

	var result models.TMDBSearchResponse
	if err := c.doRequest(ctx, "/search/tv", params, &result); err != nil {
		return nil, fmt.Errorf("search tv shows: %w", err)
	}

	if len(result.Results) == 0 && year > 0 {
		params.Del("first_air_date_year")
		if err := c.doRequest(ctx, "/search/tv", params, &result); err != nil {
			return nil, fmt.Errorf("search tv shows without year: %w", err)
		}
	}
	return &result, nil
}

// GetMovieDetails fetches details for a movie by TMDB id.
func (c *TMDBClient) GetMovieDetails(ctx context.Context, id int) (*models.TMDBMovieDetails, error) {
	var result models.TMDBMovieDetails
	if err := c.doRequest(ctx, fmt.Sprintf("/movie/%d", id), nil, &result); err != nil {
		return nil, fmt.Errorf("movie details: %w", err)
	}
	return &result, nil
}

// GetTVDetails fetches details for a TV show by TMDB id.
func (c *TMDBClient) GetTVDetails(ctx context.Context, id int) (*models.TMDBTVDetails, error) {
	var result models.TMDBTVDetails
	if err := c.doRequest(ctx, fmt.Sprintf("/tv/%d", id), nil, &result); err != nil {
		return nil, fmt.Errorf("tv details: %w", err)
	}
	return &result, nil
}

// Enrich resolves poster, backdrop and deep-link URLs for a media item.
// mediaType follows Tautulli's vocabulary: "movie" looks up movies,
// anything else ("episode", "show", "season") looks up TV shows. A lookup
// that finds nothing returns an empty enrichment, not an error.
func (c *TMDBClient) Enrich(ctx context.Context, mediaType, title string, year int) (*models.TMDBEnrichment, error) {
	if title == "" {
		return &models.TMDBEnrichment{}, nil
	}

	var (
		search *models.TMDBSearchResponse
		err    error
		isTV   = mediaType != "movie"
	)
	if isTV {
		search, err = c.SearchTVShows(ctx, title, year)
	} else {
		search, err = c.SearchMovies(ctx, title, year)
	}
	if err != nil {
		return nil, err
	}
	if len(search.Results) == 0 {
		return &models.TMDBEnrichment{}, nil
	}

	hit := search.Results[0]
	enrichment := &models.TMDBEnrichment{}
	if isTV {
		enrichment.MediaURL = fmt.Sprintf("/tv/%d", hit.ID)
	} else {
		enrichment.MediaURL = fmt.Sprintf("/movie/%d", hit.ID)
	}
	if hit.PosterPath != "" {
		enrichment.PosterURL = fmt.Sprintf("%s/%s%s", c.imageBaseURL, tmdbPosterSize, hit.PosterPath)
	}
	if hit.BackdropPath != "" {
		enrichment.BackdropURL = fmt.Sprintf("%s/%s%s", c.imageBaseURL, tmdbBackdropSize, hit.BackdropPath)
	}
	return enrichment, nil
}

// doRequest executes a GET request against the TMDB API
func (c *TMDBClient) doRequest(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)
	if c.language != "" {
		params.Set("language", c.language)
	}

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	operation := strings.TrimPrefix(path, "/")
	if idx := strings.IndexByte(operation, '/'); idx > 0 {
		operation = operation[:idx]
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.RecordUpstreamRequest("tmdb", operation, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body := readBodyForError(resp.Body)
		return fmt.Errorf("TMDB request failed with status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
