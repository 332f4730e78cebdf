// Streamwarden - Plex Session Reconciliation and Subscription Enforcement
// Copyright 2026 Streamwarden contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamwarden/streamwarden

package enforcement

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/streamwarden/streamwarden/internal/logging"
	"github.com/streamwarden/streamwarden/internal/metrics"
)

// SharingEnforcerConfig configures the duplicate-IP sharing job.
type SharingEnforcerConfig struct {
	// ServiceAccountID is the local user whose Plex token authorizes the pass.
	ServiceAccountID int64

	// Reason is the message shown to viewers of terminated streams.
	Reason string
}

// SharingEnforcer detects accounts streaming from two different public IPs
// within one pass and terminates both streams.
type SharingEnforcer struct {
	cfg     SharingEnforcerConfig
	users   UserStore
	clients ClientFactory

	state        jobState
	incidents    atomic.Int64
	terminations atomic.Int64
}

// NewSharingEnforcer creates a sharing enforcer.
func NewSharingEnforcer(cfg SharingEnforcerConfig, users UserStore, clients ClientFactory) *SharingEnforcer {
	return &SharingEnforcer{
		cfg:     cfg,
		users:   users,
		clients: clients,
	}
}

// RunPass executes one detection pass.
//
// A pass either completes against a full session listing or aborts with no
// effect: listing failures never produce partial terminations. Individual
// termination failures are logged and do not stop the pass. Returns
// ErrPassInProgress when the previous pass is still running.
func (e *SharingEnforcer) RunPass(ctx context.Context) error {
	if !e.state.tryStart() {
		metrics.RecordPassSkipped("sharing")
		return ErrPassInProgress
	}

	start := time.Now()
	err := e.runPass(ctx)
	e.state.finish(err)
	metrics.RecordPass("sharing", time.Since(start), err)
	return err
}

func (e *SharingEnforcer) runPass(ctx context.Context) error {
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
		logger.Debug().Msg("No active sessions, nothing to check")
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
	incidents := DetectDuplicateIPs(resolved)

	for _, incident := range incidents {
		e.incidents.Add(1)
		metrics.SharingIncidents.Inc()

		logger.Warn().
			Str("username", incident.Username).
			Str("first_ip", incident.FirstIP).
			Str("offending_ip", incident.OffendingIP).
			Msg("Account sharing detected, terminating both sessions")

		// Both the baseline session and the offending one go. A session that
		// already ended terminates as a no-op upstream.
		for _, sessionID := range []string{incident.FirstSessionID, incident.OffendingSession} {
			if err := plex.TerminateSession(ctx, sessionID, e.cfg.Reason); err != nil {
				logger.Error().Err(err).
					Str("session_id", sessionID).
					Str("username", incident.Username).
					Msg("Failed to terminate session")
				continue
			}
			e.terminations.Add(1)
			metrics.RecordTermination("sharing")
		}
	}

	logger.Info().
		Int("sessions", len(resolved)).
		Int("incidents", len(incidents)).
		Msg("Sharing pass complete")
	return nil
}

// Status returns a snapshot of the job state.
func (e *SharingEnforcer) Status() JobStatus {
	status := JobStatus{
		Job:          "sharing",
		Enabled:      true,
		Terminations: e.terminations.Load(),
		Incidents:    e.incidents.Load(),
	}
	e.state.fill(&status)
	return status
}
