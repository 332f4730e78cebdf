// Streamwarden - Plex Session Reconciliation and Subscription Enforcement
// Copyright 2026 Streamwarden contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamwarden/streamwarden

package models

// OwnerIdentity is the identity of the Plex account the service token
// belongs to, fetched from /myplex/account. Sessions whose display name
// matches Title resolve to Username.
type OwnerIdentity struct {
	Title    string `json:"title"` // Display name
	Username string `json:"username"`
	Email    string `json:"email"`
}

// AccountMember is a user the Plex server is shared with, as listed by
// plex.tv. DisplayName is what appears on playback sessions; Username is the
// canonical plex.tv identity used for local user lookups.
type AccountMember struct {
	DisplayName string `json:"displayName"`
	Username    string `json:"username"`
	Email       string `json:"email"`
}

// ResolvedSession is a playback session with its viewer identity resolved to
// a canonical username. It is the working unit of both enforcers.
type ResolvedSession struct {
	SessionID string `json:"sessionId"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	RemoteIP  string `json:"remoteIp"`

	// UsernameResolved is false when neither the owner identity nor the
	// member list matched and the raw display name was used as a fallback.
	UsernameResolved bool `json:"usernameResolved"`
}

// SharingIncident records one duplicate-IP detection: the same account seen
// streaming from two different public IPs within a single pass.
type SharingIncident struct {
	Username         string `json:"username"`
	FirstSessionID   string `json:"firstSessionId"`
	FirstIP          string `json:"firstIp"`
	OffendingSession string `json:"offendingSessionId"`
	OffendingIP      string `json:"offendingIp"`
}

// StreamInfo is the API view of an active playback session served by
// GET /api/v1/streams.
type StreamInfo struct {
	Username      string `json:"username"`
	Email         string `json:"email"`
	Title         string `json:"title"`
	SessionID     string `json:"sessionId"`
	MediaType     string `json:"mediaType"`
	State         string `json:"state"`
	CurrentTime   string `json:"currentTime"` // h:mm:ss
	TotalTime     string `json:"totalTime"`   // h:mm:ss
	PosterURL     string `json:"posterUrl"`
	BackgroundURL string `json:"backgroundUrl"`
	AvatarURL     string `json:"avatarUrl,omitempty"`
	ReleaseYear   int    `json:"releaseYear,omitempty"`
}
