// Streamwarden - Plex Session Reconciliation and Subscription Enforcement
// Copyright 2026 Streamwarden contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamwarden/streamwarden

// Package api implements the HTTP surface of Streamwarden: the resolved
// stream list, the Tautulli current-streams and top-users proxies with TMDB
// enrichment, the authenticated image proxies, enforcement job status and
// manual triggers, and health endpoints.
//
// Routing uses go-chi/chi with go-chi/cors and go-chi/httprate middleware.
// All responses share the envelope in response.go. Upstream error bodies are
// never echoed to clients; handlers return generic 5xx codes and log the
// detail server-side.
package api
