// Streamwarden - Plex Session Reconciliation and Subscription Enforcement
// Copyright 2026 Streamwarden contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamwarden/streamwarden

// Package models defines the shared data structures for Streamwarden:
// Plex, plex.tv, Tautulli and TMDB API payloads, the local user record,
// and the reconciled session views served by the API.
package models
