// Streamwarden - Plex Session Reconciliation and Subscription Enforcement
// Copyright 2026 Streamwarden contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamwarden/streamwarden

package enforcement

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/streamwarden/streamwarden/internal/logging"
	"github.com/streamwarden/streamwarden/internal/metrics"
	"github.com/streamwarden/streamwarden/internal/models"
)

// SubscriptionEnforcerConfig configures the expired-subscription job.
type SubscriptionEnforcerConfig struct {
	ServiceAccountID int64
	Reason           string
}

// SubscriptionEnforcer terminates the streams of local users whose
// subscription is Expired or was never set. Users without a local record are
// left alone: only managed accounts are subject to enforcement.
type SubscriptionEnforcer struct {
	cfg     SubscriptionEnforcerConfig
	users   UserStore
	clients ClientFactory

	state        jobState
	terminations atomic.Int64
}

// NewSubscriptionEnforcer creates a subscription enforcer.
func NewSubscriptionEnforcer(cfg SubscriptionEnforcerConfig, users UserStore, clients ClientFactory) *SubscriptionEnforcer {
	return &SubscriptionEnforcer{
		cfg:     cfg,
		users:   users,
		clients: clients,
	}
}

// RunPass executes one enforcement pass. Per-session lookup and termination
// failures are logged and skipped; only listing failures abort the pass.
func (e *SubscriptionEnforcer) RunPass(ctx context.Context) error {
	if !e.state.tryStart() {
		metrics.RecordPassSkipped("subscriptions")
		return ErrPassInProgress
	}

	start := time.Now()
	err := e.runPass(ctx)
	e.state.finish(err)
	metrics.RecordPass("subscriptions", time.Since(start), err)
	return err
}

func (e *SubscriptionEnforcer) runPass(ctx context.Context) error {
	logger := logging.Ctx(ctx)

	token, err := serviceToken(ctx, e.users, e.cfg.ServiceAccountID)
	if err != nil {
		return err
	}

	plex := e.clients.Plex(token)
	plextv := e.clients.PlexTV(token)

	sessions, err := plex.ListActiveSessions(ctx)
	if err != nil {
		return fmt.Errorf("%w: listing active sessions: %v", ErrUpstreamUnavailable, err)
	}
	if len(sessions) == 0 {
		logger.Debug().Msg("No active sessions, nothing to enforce")
		return nil
	}

	owner, err := plex.GetOwnIdentity(ctx)
	if err != nil {
		return fmt.Errorf("%w: fetching account identity: %v", ErrUpstreamUnavailable, err)
	}

	members, err := plextv.ListAccountMembers(ctx)
	if err != nil {
		return fmt.Errorf("%w: listing account members: %v", ErrUpstreamUnavailable, err)
	}

	resolved := Reconcile(sessions, members, owner)

	// Per-session fan-out: user lookups and terminations are independent.
	var wg sync.WaitGroup
	var terminated atomic.Int64

	for _, session := range resolved {
		wg.Add(1)
		go func(s models.ResolvedSession) {
			defer wg.Done()
			if e.enforceSession(ctx, plex, s) {
				terminated.Add(1)
			}
		}(session)
	}
	wg.Wait()

	logger.Info().
		Int("sessions", len(resolved)).
		Int64("terminated", terminated.Load()).
		Msg("Subscription pass complete")
	return nil
}

// enforceSession terminates one session if its user's subscription has
// lapsed. Returns true when a termination succeeded.
func (e *SubscriptionEnforcer) enforceSession(ctx context.Context, plex SessionService, s models.ResolvedSession) bool {
	logger := logging.Ctx(ctx)

	user, err := e.users.FindByPlexUsername(ctx, s.Username)
	if err != nil {
		logger.Error().Err(err).
			Str("username", s.Username).
			Msg("User lookup failed, leaving session alone")
		return false
	}
	if user == nil {
		// Not a managed account.
		return false
	}
	if !user.SubscriptionLapsed() {
		return false
	}

	if err := plex.TerminateSession(ctx, s.SessionID, e.cfg.Reason); err != nil {
		logger.Error().Err(err).
			Str("session_id", s.SessionID).
			Str("username", s.Username).
			Msg("Failed to terminate expired user's session")
		return false
	}

	e.terminations.Add(1)
	metrics.RecordTermination("subscriptions")
	logger.Info().
		Str("username", s.Username).
		Str("session_id", s.SessionID).
		Str("status", user.SubscriptionStatus).
		Msg("Terminated session of user without active subscription")
	return true
}

// Status returns a snapshot of the job state.
func (e *SubscriptionEnforcer) Status() JobStatus {
	status := JobStatus{
		Job:          "subscriptions",
		Enabled:      true,
		Terminations: e.terminations.Load(),
	}
	e.state.fill(&status)
	return status
}
