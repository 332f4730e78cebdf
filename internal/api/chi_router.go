// Streamwarden - Plex Session Reconciliation and Subscription Enforcement
// Copyright 2026 Streamwarden contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamwarden/streamwarden

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/streamwarden/streamwarden/internal/middleware"
)

// Router wires handlers and middleware into a chi mux.
type Router struct {
	handler    *Handler
	middleware *ChiMiddleware
}

// NewRouter creates a router for the given handler and middleware.
func NewRouter(handler *Handler, mw *ChiMiddleware) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	return &Router{handler: handler, middleware: mw}
}

// chiMiddleware adapts http.HandlerFunc middleware to chi's http.Handler
// middleware signature.
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// SetupChi builds the full route tree.
//
// Global stack: request ID + logging context, real IP resolution, panic
// recovery, CORS. The /api/v1 group adds Prometheus HTTP metrics and
// IP-keyed rate limiting. /metrics and the health endpoints stay outside
// the rate limit so scrapers and orchestrator probes are never throttled.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.middleware.CORS())

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chiMiddleware(middleware.PrometheusMetrics))

		r.Get("/health", router.handler.GetHealth)
		r.Get("/health/ready", router.handler.GetReadiness)

		r.Group(func(r chi.Router) {
			r.Use(router.middleware.RateLimit())

			r.Get("/streams", router.handler.GetStreams)
			r.Get("/streams/imageproxy", router.handler.GetStreamImage)

			r.Get("/tautulli/current-streams", router.handler.GetTautulliCurrentStreams)
			r.Get("/tautulli/top-users", router.handler.GetTautulliTopUsers)
			r.Get("/tautulli/imageproxy", router.handler.GetTautulliImage)

			r.Get("/enforcement/status", router.handler.GetEnforcementStatus)
			r.Post("/enforcement/sharing/run", router.handler.TriggerSharing)
			r.Post("/enforcement/subscriptions/run", router.handler.TriggerSubscriptions)
			r.Post("/enforcement/sweep/run", router.handler.TriggerSweep)
		})
	})

	return r
}
