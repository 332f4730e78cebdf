// Streamwarden - Plex Session Reconciliation and Subscription Enforcement
// Copyright 2026 Streamwarden contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamwarden/streamwarden

// Package enforcement implements the three background jobs at the core of
// Streamwarden: duplicate-IP account sharing detection, expired-subscription
// stream termination, and the subscription expiration sweep.
//
// All jobs share one session resolution path (see Reconcile) and one error
// taxonomy (see errors.go). Each pass fetches the service account's Plex
// token from the user store, so token rotation needs no restart.
package enforcement

import (
	"context"
	"time"

	"github.com/streamwarden/streamwarden/internal/models"
)

// SessionService lists and terminates active playback sessions on the Plex
// Media Server and resolves the token holder's identity.
type SessionService interface {
	ListActiveSessions(ctx context.Context) ([]models.PlexSession, error)
	TerminateSession(ctx context.Context, sessionID, reason string) error
	GetOwnIdentity(ctx context.Context) (*models.OwnerIdentity, error)
}

// MemberService lists the users the Plex server is shared with.
type MemberService interface {
	ListAccountMembers(ctx context.Context) ([]models.AccountMember, error)
}

// UserStore is the local user persistence interface.
//
// Find methods return (nil, nil) when no record matches; an error means the
// lookup itself failed.
type UserStore interface {
	FindByID(ctx context.Context, id int64) (*models.LocalUser, error)
	FindByPlexUsername(ctx context.Context, username string) (*models.LocalUser, error)
	ListByStatus(ctx context.Context, status string) ([]models.LocalUser, error)
	UpdateSubscriptionStatus(ctx context.Context, id int64, status string) error
}

// ClientFactory builds Plex clients bound to a token. Enforcers call it once
// per pass with the service account's current token.
type ClientFactory interface {
	Plex(token string) SessionService
	PlexTV(token string) MemberService
}

// JobStatus is a snapshot of one job's state, served by the enforcement
// status endpoint.
type JobStatus struct {
	Job          string    `json:"job"`
	Enabled      bool      `json:"enabled"`
	Running      bool      `json:"running"`
	LastRun      time.Time `json:"lastRun"`
	LastSuccess  time.Time `json:"lastSuccess"`
	LastError    string    `json:"lastError,omitempty"`
	Terminations int64     `json:"terminations"`

	// Incidents counts duplicate-IP detections (sharing job only).
	Incidents int64 `json:"incidents,omitempty"`

	// Transitions counts Active-to-Expired sweeps (sweep job only).
	Transitions int64 `json:"transitions,omitempty"`
}
