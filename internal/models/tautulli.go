// Streamwarden - Plex Session Reconciliation and Subscription Enforcement
// Copyright 2026 Streamwarden contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamwarden/streamwarden

package models

import "encoding/json"

// ===================================================================================================
// Tautulli API v2 structures
//
// All commands go through GET {base}/api/v2?apikey=...&cmd=...
// Numeric fields use json.Number: Tautulli serializes many numbers as strings.
// ===================================================================================================

// TautulliActivity is the data payload of cmd=get_activity.
type TautulliActivity struct {
	StreamCount json.Number       `json:"stream_count"`
	Sessions    []TautulliSession `json:"sessions"`
}

// TautulliSession is one active stream as reported by get_activity.
type TautulliSession struct {
	SessionID        string      `json:"session_id"`
	UserID           json.Number `json:"user_id"`
	Username         string      `json:"username"`
	FriendlyName     string      `json:"friendly_name"`
	UserThumb        string      `json:"user_thumb"`
	MediaType        string      `json:"media_type"` // "movie", "episode", "show", "track"
	Title            string      `json:"title"`
	ParentTitle      string      `json:"parent_title"`
	GrandparentTitle string      `json:"grandparent_title"`
	Year             json.Number `json:"year"`
	GrandparentYear  json.Number `json:"grandparent_year"`
	RatingKey        string      `json:"rating_key"`
	Thumb            string      `json:"thumb"`
	Art              string      `json:"art"`
	GrandparentThumb string      `json:"grandparent_thumb"`
	ViewOffset       json.Number `json:"view_offset"` // milliseconds
	Duration         json.Number `json:"duration"`    // milliseconds
	PlaybackRate     json.Number `json:"playback_rate"`
	State            string      `json:"state"`
	LastSeen         json.Number `json:"last_seen"`    // unix seconds
	SessionTime      json.Number `json:"session_time"` // unix seconds
}

// TautulliHomeStats is the data payload of cmd=get_home_stats for a single
// stat_id (we only request top_users).
type TautulliHomeStats struct {
	StatID string               `json:"stat_id"`
	Rows   []TautulliTopUserRow `json:"rows"`
}

// TautulliTopUserRow is one user row from the top_users home stat.
type TautulliTopUserRow struct {
	User             string      `json:"user"`
	FriendlyName     string      `json:"friendly_name"`
	UserID           json.Number `json:"user_id"`
	UserThumb        string      `json:"user_thumb"`
	TotalPlays       json.Number `json:"total_plays"`
	TotalDuration    json.Number `json:"total_duration"` // seconds
	LastPlay         json.Number `json:"last_play"`      // unix seconds
	RatingKey        json.Number `json:"rating_key"`
	Thumb            string      `json:"thumb"`
	GrandparentThumb string      `json:"grandparent_thumb"`
	Art              string      `json:"art"`
}

// TautulliHistory is the data payload of cmd=get_history.
type TautulliHistory struct {
	RecordsTotal json.Number          `json:"recordsTotal"`
	Data         []TautulliHistoryRow `json:"data"`
}

// TautulliHistoryRow is one watch-history entry.
type TautulliHistoryRow struct {
	Title            string      `json:"title"`
	ParentTitle      string      `json:"parent_title"`
	GrandparentTitle string      `json:"grandparent_title"`
	MediaType        string      `json:"media_type"`
	Year             json.Number `json:"year"`
	GrandparentYear  json.Number `json:"grandparent_year"`
	RatingKey        json.Number `json:"rating_key"`
	Date             json.Number `json:"date"` // unix seconds
}

// ===================================================================================================
// API views served by the Tautulli proxy endpoints
// ===================================================================================================

// TautulliStreamView is one enriched stream in GET /api/v1/tautulli/current-streams.
type TautulliStreamView struct {
	SessionID        string  `json:"session_id"`
	User             string  `json:"user"`
	UserThumb        string  `json:"user_thumb"`
	Title            string  `json:"title"`
	GrandparentTitle string  `json:"grandparent_title"`
	FullTitle        string  `json:"full_title"`
	Year             string  `json:"year"`
	GrandparentYear  string  `json:"grandparent_year"`
	MediaURL         string  `json:"mediaUrl,omitempty"` // Deep link into the request app
	UserProfileLink  string  `json:"userProfileLink,omitempty"`
	Thumb            string  `json:"thumb,omitempty"` // TMDB poster
	Art              string  `json:"art,omitempty"`   // TMDB backdrop
	ViewOffset       int64   `json:"view_offset"`
	Duration         int64   `json:"duration"`
	LastUpdate       int64   `json:"last_update"` // unix milliseconds
	PlaybackRate     float64 `json:"playback_rate"`
	State            string  `json:"state"`
}

// TautulliLastMedia describes the most recent watch of a top user.
type TautulliLastMedia struct {
	Title            string `json:"title"`
	GrandparentTitle string `json:"grandparent_title"`
	Year             string `json:"year"`
	GrandparentYear  string `json:"grandparent_year"`
	MediaURL         string `json:"mediaUrl,omitempty"`
}

// TautulliTopUserView is one user in GET /api/v1/tautulli/top-users.
type TautulliTopUserView struct {
	User                 string             `json:"user"`
	UserThumb            string             `json:"user_thumb"`
	TotalPlays           int64              `json:"total_plays"`
	TotalDurationSeconds int64              `json:"total_duration_seconds"`
	TotalDuration        string             `json:"total_duration"` // "Xh Ym"
	LastPlay             string             `json:"last_play"`
	Thumb                string             `json:"thumb,omitempty"`
	Art                  string             `json:"art,omitempty"`
	LastMedia            *TautulliLastMedia `json:"last_media"`
	UserProfileLink      string             `json:"userProfileLink,omitempty"`
}
