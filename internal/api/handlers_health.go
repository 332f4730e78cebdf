// Streamwarden - Plex Session Reconciliation and Subscription Enforcement
// Copyright 2026 Streamwarden contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamwarden/streamwarden

package api

import (
	"net/http"
	"time"

	"github.com/streamwarden/streamwarden/internal/logging"
)

// HealthStatus is the payload of the liveness endpoint.
type HealthStatus struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// ReadinessStatus is the payload of the readiness endpoint.
type ReadinessStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// GetHealth handles GET /api/v1/health. It reports liveness only and never
// touches backends.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, HealthStatus{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
	})
}

// GetReadiness handles GET /api/v1/health/ready. It checks the database and,
// when configured, Tautulli. A failing check answers 503 with per-check
// results; the failure detail stays in the logs.
func (h *Handler) GetReadiness(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	ctx := r.Context()

	checks := make(map[string]string)
	healthy := true

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			logging.Ctx(ctx).Error().Err(err).Msg("Database readiness check failed")
			checks["database"] = "unhealthy"
			healthy = false
		} else {
			checks["database"] = "ok"
		}
	}

	if h.tautulli != nil {
		if err := h.tautulli.Ping(ctx); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("Tautulli readiness check failed")
			checks["tautulli"] = "unhealthy"
			healthy = false
		} else {
			checks["tautulli"] = "ok"
		}
	}

	status := ReadinessStatus{Status: "ready", Checks: checks}
	if !healthy {
		status.Status = "degraded"
		rw.writeJSON(http.StatusServiceUnavailable, &APIResponse{
			Success: false,
			Data:    status,
			Error: &APIError{
				Code:    ErrCodeServiceUnavailable,
				Message: "One or more dependencies are unavailable",
			},
			Meta: rw.meta(),
		})
		return
	}

	rw.Success(status)
}
