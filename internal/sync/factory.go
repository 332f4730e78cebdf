// Streamwarden - Plex Session Reconciliation and Subscription Enforcement
// Copyright 2026 Streamwarden contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamwarden/streamwarden

package sync

import (
	"context"

	"github.com/streamwarden/streamwarden/internal/config"
	"github.com/streamwarden/streamwarden/internal/enforcement"
)

// Factory builds Plex clients bound to a token. The enforcement jobs and
// API handlers fetch the service account's token from the user store per
// pass, so client construction has to be deferred until the token is known.
type Factory struct {
	plexCfg *config.PlexConfig
}

// NewFactory creates a client factory for the given Plex configuration.
func NewFactory(plexCfg *config.PlexConfig) *Factory {
	return &Factory{plexCfg: plexCfg}
}

// Plex returns a Plex Media Server client bound to the token.
func (f *Factory) Plex(token string) enforcement.SessionService {
	return NewPlexClient(f.plexCfg, token)
}

// PlexTV returns a plex.tv account client bound to the token.
func (f *Factory) PlexTV(token string) enforcement.MemberService {
	return NewPlexTVClient(f.plexCfg, token)
}

// GetImage fetches a Plex artwork asset with the given token. The image
// proxy endpoint uses it to serve artwork without exposing the token to
// browsers.
func (f *Factory) GetImage(ctx context.Context, token, path string) (*ImageResult, error) {
	return NewPlexClient(f.plexCfg, token).GetImage(ctx, path)
}
