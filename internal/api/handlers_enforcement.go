// Streamwarden - Plex Session Reconciliation and Subscription Enforcement
// Copyright 2026 Streamwarden contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamwarden/streamwarden

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/streamwarden/streamwarden/internal/enforcement"
	"github.com/streamwarden/streamwarden/internal/logging"
)

// triggerTimeout bounds a manually triggered pass. Manual passes run with a
// detached context so they survive the triggering request.
const triggerTimeout = 2 * time.Minute

// GetEnforcementStatus handles GET /api/v1/enforcement/status.
func (h *Handler) GetEnforcementStatus(w http.ResponseWriter, r *http.Request) {
	statuses := make([]enforcement.JobStatus, 0, 3)

	if h.sharing != nil {
		status := h.sharing.Status()
		status.Enabled = h.config.Enforcement.Sharing.Enabled
		statuses = append(statuses, status)
	} else {
		statuses = append(statuses, enforcement.JobStatus{Job: "sharing"})
	}

	if h.subscriptions != nil {
		status := h.subscriptions.Status()
		status.Enabled = h.config.Enforcement.Subscriptions.Enabled
		statuses = append(statuses, status)
	} else {
		statuses = append(statuses, enforcement.JobStatus{Job: "subscriptions"})
	}

	if h.sweeper != nil {
		status := h.sweeper.Status()
		status.Enabled = h.config.Enforcement.Sweep.Enabled
		statuses = append(statuses, status)
	} else {
		statuses = append(statuses, enforcement.JobStatus{Job: "sweep"})
	}

	NewResponseWriter(w, r).Success(statuses)
}

// TriggerSharing handles POST /api/v1/enforcement/sharing/run.
func (h *Handler) TriggerSharing(w http.ResponseWriter, r *http.Request) {
	if h.sharing == nil {
		NewResponseWriter(w, r).ServiceUnavailable("Sharing enforcement is not configured")
		return
	}
	h.triggerPass(w, r, "sharing", h.sharing.RunPass)
}

// TriggerSubscriptions handles POST /api/v1/enforcement/subscriptions/run.
func (h *Handler) TriggerSubscriptions(w http.ResponseWriter, r *http.Request) {
	if h.subscriptions == nil {
		NewResponseWriter(w, r).ServiceUnavailable("Subscription enforcement is not configured")
		return
	}
	h.triggerPass(w, r, "subscriptions", h.subscriptions.RunPass)
}

// TriggerSweep handles POST /api/v1/enforcement/sweep/run.
func (h *Handler) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	if h.sweeper == nil {
		NewResponseWriter(w, r).ServiceUnavailable("Expiration sweep is not configured")
		return
	}
	h.triggerPass(w, r, "sweep", func(ctx context.Context) error {
		return h.sweeper.RunPass(ctx, time.Now())
	})
}

// triggerPass starts one pass in the background and answers 202. An already
// running pass answers 409 instead of queueing; passes never overlap.
func (h *Handler) triggerPass(w http.ResponseWriter, r *http.Request, job string, run func(context.Context) error) {
	rw := NewResponseWriter(w, r)

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), triggerTimeout)
		defer cancel()
		done <- run(ctx)
	}()

	// Wait only long enough to distinguish "refused" from "started". The
	// overlap check happens synchronously at the top of RunPass, so a
	// refused pass reports back immediately.
	select {
	case err := <-done:
		if errors.Is(err, enforcement.ErrPassInProgress) {
			rw.Conflict("A " + job + " pass is already running")
			return
		}
		if err != nil {
			logging.Ctx(r.Context()).Error().Err(err).Str("job", job).Msg("Triggered pass failed")
		}
	case <-time.After(50 * time.Millisecond):
		// Pass is underway; report errors via logs like scheduled passes.
		go func() {
			if err := <-done; err != nil {
				logging.Error().Err(err).Str("job", job).Msg("Triggered pass failed")
			}
		}()
	}

	rw.writeJSON(http.StatusAccepted, &APIResponse{
		Success: true,
		Data:    map[string]string{"job": job, "status": "triggered"},
		Meta:    rw.meta(),
	})
}
