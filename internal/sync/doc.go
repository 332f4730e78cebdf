// Streamwarden - Plex Session Reconciliation and Subscription Enforcement
// Copyright 2026 Streamwarden contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamwarden/streamwarden

// Package sync contains the HTTP clients for the upstream services
// Streamwarden talks to: the Plex Media Server, the plex.tv account API,
// Tautulli, and The Movie Database.
//
// All clients accept a context on every call and report request outcomes
// through the metrics package. The Tautulli client is wrapped by a circuit
// breaker because Tautulli instances are frequently slow or down while the
// rest of the stack is healthy.
//
// Plex tokens are not part of the static configuration. The enforcement
// jobs resolve the token from the service account user record at the start
// of every pass and build a client through the Factory, so a token rotated
// in the database is picked up without a restart.
package sync
