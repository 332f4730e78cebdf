// Streamwarden - Plex Session Reconciliation and Subscription Enforcement
// Copyright 2026 Streamwarden contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamwarden/streamwarden

package models

// ===================================================================================================
// Plex Media Server API structures
//
// Endpoint: GET /status/sessions?X-Plex-Token={token}
// Returns: Currently active playback sessions
// ===================================================================================================

// PlexSessionsResponse represents the top-level response from /status/sessions.
type PlexSessionsResponse struct {
	MediaContainer PlexSessionsContainer `json:"MediaContainer"`
}

// PlexSessionsContainer wraps the active sessions array.
type PlexSessionsContainer struct {
	Size     int           `json:"size"`
	Metadata []PlexSession `json:"Metadata"`
}

// PlexSession represents a single active playback session.
type PlexSession struct {
	// Content information
	RatingKey        string `json:"ratingKey"`
	Key              string `json:"key"`
	Type             string `json:"type"` // "movie", "episode", "track"
	Title            string `json:"title"`
	GrandparentTitle string `json:"grandparentTitle,omitempty"` // Show/Artist name
	ParentTitle      string `json:"parentTitle,omitempty"`      // Season/Album name
	Year             int    `json:"year,omitempty"`

	// Artwork paths (relative, require the server base URL and token)
	Thumb            string `json:"thumb,omitempty"`
	Art              string `json:"art,omitempty"`
	GrandparentThumb string `json:"grandparentThumb,omitempty"`

	// Playback state
	ViewOffset int64 `json:"viewOffset"` // Current position (milliseconds)
	Duration   int64 `json:"duration"`   // Total duration (milliseconds)

	// User holds the display identity of the viewer. The title field is a
	// display name, not necessarily the canonical plex.tv username.
	User *PlexSessionUser `json:"User,omitempty"`

	// Usernames is a fallback identity list some server versions populate.
	Usernames []string `json:"usernames,omitempty"`

	// Session identifies the playback session for termination.
	Session *PlexSessionInfo `json:"Session,omitempty"`

	// Player describes the client device, including its public IP.
	Player *PlexSessionPlayer `json:"Player,omitempty"`
}

// PlexSessionUser represents user information in active sessions.
type PlexSessionUser struct {
	ID    string `json:"id"`
	Title string `json:"title"` // Display name
	Thumb string `json:"thumb"` // Avatar URL
}

// PlexSessionInfo carries the session identifier used by
// /status/sessions/terminate.
type PlexSessionInfo struct {
	ID        string `json:"id"`
	Bandwidth int64  `json:"bandwidth,omitempty"`
	Location  string `json:"location,omitempty"` // "lan" or "wan"
}

// PlexSessionPlayer represents device/client information.
type PlexSessionPlayer struct {
	Address             string `json:"address"` // Local client IP
	RemotePublicAddress string `json:"remotePublicAddress"`
	Device              string `json:"device"`
	MachineID           string `json:"machineIdentifier"`
	Platform            string `json:"platform"`
	Product             string `json:"product"`
	State               string `json:"state"` // "playing", "paused", "buffering"
	Title               string `json:"title"` // Device friendly name
	Local               bool   `json:"local"`
	Relayed             bool   `json:"relayed"`
	Secure              bool   `json:"secure"`
}

// ===================================================================================================
// Plex account identity
//
// Endpoint: GET /myplex/account?X-Plex-Token={token}
// Returns: Identity of the account the token belongs to
// ===================================================================================================

// PlexAccountResponse represents the response from /myplex/account.
type PlexAccountResponse struct {
	MediaContainer PlexAccountContainer `json:"MediaContainer"`
}

// PlexAccountContainer carries the token holder's identity fields.
type PlexAccountContainer struct {
	Title    string `json:"title"` // Display name
	Username string `json:"username"`
	Email    string `json:"email"`
}

// ===================================================================================================
// plex.tv account members
//
// Endpoint: GET https://plex.tv/api/v2/friends
// Returns: Users the server is shared with
// ===================================================================================================

// PlexFriend represents a member from the plex.tv friends list.
type PlexFriend struct {
	ID       int64  `json:"id"`
	UUID     string `json:"uuid"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Thumb    string `json:"thumb"`
	Title    string `json:"title"`  // Display name
	Status   string `json:"status"` // "accepted", "pending"
	Home     bool   `json:"home"`
	Server   bool   `json:"server"` // Has server access
}
