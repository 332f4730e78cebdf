// Streamwarden - Plex Session Reconciliation and Subscription Enforcement
// Copyright 2026 Streamwarden contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamwarden/streamwarden

package enforcement

import "errors"

var (
	// ErrPreconditionMissing indicates a pass could not start because a
	// required local precondition was absent, typically the service account
	// record or its Plex token. The pass aborts without touching upstream.
	ErrPreconditionMissing = errors.New("precondition missing")

	// ErrUpstreamUnavailable indicates an upstream listing call (Plex
	// sessions, account identity, member list) failed. The pass aborts with
	// no partial effects; the next scheduled pass retries naturally.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrPassInProgress indicates a pass was requested while the previous
	// one for the same job was still running. The request is dropped, not
	// queued.
	ErrPassInProgress = errors.New("pass already in progress")
)
