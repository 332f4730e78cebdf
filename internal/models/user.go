// Streamwarden - Plex Session Reconciliation and Subscription Enforcement
// Copyright 2026 Streamwarden contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamwarden/streamwarden

package models

// Subscription status values stored on local user records.
const (
	// SubscriptionActive marks a user with a current subscription.
	SubscriptionActive = "Active"

	// SubscriptionExpired marks a user whose subscription has lapsed.
	// Sessions of expired users are terminated by the subscription enforcer.
	SubscriptionExpired = "Expired"
)

// LocalUser is a user record in the local store, mirroring the accounts the
// media-request app manages. PlexUsername is the canonical plex.tv username
// and is unique across records.
type LocalUser struct {
	ID           int64  `json:"id"`
	PlexUsername string `json:"plexUsername"`
	Email        string `json:"email"`
	Avatar       string `json:"avatar,omitempty"`

	// PlexToken is the user's Plex authentication token. Only the configured
	// service account's token is ever used for outbound Plex calls.
	PlexToken string `json:"-"`

	// SubscriptionStatus is "Active", "Expired", or empty when never set.
	// An empty status is treated the same as Expired by enforcement.
	SubscriptionStatus string `json:"subscriptionStatus"`

	// SubscriptionExpiration is the raw expiration timestamp string as
	// entered upstream. It is kept verbatim and parsed only at sweep time so
	// malformed values can be reported rather than silently dropped.
	SubscriptionExpiration string `json:"subscriptionExpiration,omitempty"`
}

// HasActiveSubscription reports whether the user should be allowed to stream.
func (u *LocalUser) HasActiveSubscription() bool {
	return u.SubscriptionStatus == SubscriptionActive
}

// SubscriptionLapsed reports whether the user's subscription has run out.
// Only an explicit Expired status or a missing one counts as lapsed; any
// other value is outside the known vocabulary and is left alone.
func (u *LocalUser) SubscriptionLapsed() bool {
	return u.SubscriptionStatus == SubscriptionExpired || u.SubscriptionStatus == ""
}
