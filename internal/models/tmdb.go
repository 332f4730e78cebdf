// Streamwarden - Plex Session Reconciliation and Subscription Enforcement
// Copyright 2026 Streamwarden contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamwarden/streamwarden

package models

// ===================================================================================================
// The Movie Database (TMDB) API v3 structures
//
// Endpoints: /search/movie, /search/tv, /movie/{id}, /tv/{id}
// ===================================================================================================

// TMDBSearchResponse is the payload of /search/movie and /search/tv.
type TMDBSearchResponse struct {
	Page         int                `json:"page"`
	Results      []TMDBSearchResult `json:"results"`
	TotalPages   int                `json:"total_pages"`
	TotalResults int                `json:"total_results"`
}

// TMDBSearchResult is one search hit. Title is set for movies, Name for TV.
type TMDBSearchResult struct {
	ID           int     `json:"id"`
	Title        string  `json:"title,omitempty"`
	Name         string  `json:"name,omitempty"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
	ReleaseDate  string  `json:"release_date,omitempty"`
	FirstAirDate string  `json:"first_air_date,omitempty"`
	Popularity   float64 `json:"popularity"`
}

// TMDBMovieDetails is the payload of /movie/{id}.
type TMDBMovieDetails struct {
	ID           int    `json:"id"`
	Title        string `json:"title"`
	PosterPath   string `json:"poster_path"`
	BackdropPath string `json:"backdrop_path"`
	ReleaseDate  string `json:"release_date"`
	Overview     string `json:"overview"`
}

// TMDBTVDetails is the payload of /tv/{id}.
type TMDBTVDetails struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	PosterPath   string `json:"poster_path"`
	BackdropPath string `json:"backdrop_path"`
	FirstAirDate string `json:"first_air_date"`
	Overview     string `json:"overview"`
}

// TMDBEnrichment is the poster/backdrop/deep-link bundle resolved for a media
// item, shared by the Tautulli proxy endpoints.
type TMDBEnrichment struct {
	MediaURL    string `json:"mediaUrl,omitempty"` // "/movie/{id}" or "/tv/{id}"
	PosterURL   string `json:"posterUrl,omitempty"`
	BackdropURL string `json:"backdropUrl,omitempty"`
}
