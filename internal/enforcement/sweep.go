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
	"github.com/streamwarden/streamwarden/internal/models"
)

// expirationLayouts are tried in order when parsing stored expiration
// timestamps. Values are stored verbatim as entered upstream, so several
// formats circulate.
var expirationLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseExpiration parses a stored subscription expiration timestamp.
func ParseExpiration(value string) (time.Time, error) {
	for _, layout := range expirationLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized expiration timestamp %q", value)
}

// Sweeper transitions Active subscriptions whose expiration has passed to
// Expired. It never terminates streams itself; the subscription enforcer
// picks the change up on its next pass.
type Sweeper struct {
	users UserStore

	state       jobState
	transitions atomic.Int64
}

// NewSweeper creates an expiration sweeper.
func NewSweeper(users UserStore) *Sweeper {
	return &Sweeper{users: users}
}

// RunPass sweeps all Active users once, relative to now.
//
// Users with an unparsable expiration are reported and skipped, never
// corrected: the raw value stays in place for an operator to fix. The sweep
// is idempotent, a second run at the same instant transitions nothing.
func (s *Sweeper) RunPass(ctx context.Context, now time.Time) error {
	if !s.state.tryStart() {
		metrics.RecordPassSkipped("sweep")
		return ErrPassInProgress
	}

	start := time.Now()
	err := s.runPass(ctx, now)
	s.state.finish(err)
	metrics.RecordPass("sweep", time.Since(start), err)
	return err
}

func (s *Sweeper) runPass(ctx context.Context, now time.Time) error {
	logger := logging.Ctx(ctx)

	users, err := s.users.ListByStatus(ctx, models.SubscriptionActive)
	if err != nil {
		return fmt.Errorf("listing active users: %w", err)
	}

	var transitioned int64
	for _, user := range users {
		if !user.HasActiveSubscription() {
			// The status query should only return Active records; skip
			// anything else rather than expiring it.
			continue
		}
		if user.SubscriptionExpiration == "" {
			// No expiration recorded: the subscription does not lapse.
			continue
		}

		expiration, err := ParseExpiration(user.SubscriptionExpiration)
		if err != nil {
			logger.Warn().
				Str("username", user.PlexUsername).
				Str("expiration", user.SubscriptionExpiration).
				Msg("Unparsable subscription expiration, skipping user")
			continue
		}

		// Strictly before: a subscription expiring at this exact instant
		// survives until the next sweep.
		if !expiration.Before(now) {
			continue
		}

		if err := s.users.UpdateSubscriptionStatus(ctx, user.ID, models.SubscriptionExpired); err != nil {
			logger.Error().Err(err).
				Str("username", user.PlexUsername).
				Msg("Failed to mark subscription expired")
			continue
		}

		transitioned++
		s.transitions.Add(1)
		metrics.SubscriptionsSwept.Inc()
		logger.Info().
			Str("username", user.PlexUsername).
			Time("expired_at", expiration).
			Msg("Subscription expired")
	}

	logger.Info().
		Int("active_users", len(users)).
		Int64("transitioned", transitioned).
		Msg("Expiration sweep complete")
	return nil
}

// Status returns a snapshot of the job state.
func (s *Sweeper) Status() JobStatus {
	status := JobStatus{
		Job:         "sweep",
		Enabled:     true,
		Transitions: s.transitions.Load(),
	}
	s.state.fill(&status)
	return status
}
