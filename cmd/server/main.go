// Streamwarden - Plex Session Reconciliation and Subscription Enforcement
// Copyright 2026 Streamwarden contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamwarden/streamwarden

// Package main is the entry point for the Streamwarden server.
//
// Streamwarden runs alongside a Plex media server and the media-request app
// fronting it. It reconciles active playback sessions against the account
// member list, terminates streams for duplicate-IP account sharing and
// expired subscriptions, sweeps lapsed subscriptions into the Expired state,
// and serves the REST endpoints the request-app UI consumes (resolved
// streams, Tautulli proxies with TMDB enrichment, cached image proxies).
//
// # Application Architecture
//
// The server initializes components in order:
//
//  1. Configuration: Koanf v2 layered defaults, YAML file, environment
//  2. Database: DuckDB user store shared with the request app
//  3. Upstream clients: Plex client factory, Tautulli (circuit breaker),
//     TMDB (both optional)
//  4. Enforcement jobs: sharing, subscriptions, expiration sweep
//  5. HTTP server: chi router with CORS, rate limiting and Prometheus
//     metrics
//  6. Supervisor tree: suture supervises the HTTP server and the
//     enforcement loops with restart backoff
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables, config file (config.yaml),
// built-in defaults. The Plex token is NOT part of the configuration; it is
// read from the service account's user record on every pass, so rotating
// the token requires no restart.
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the HTTP server stops
// accepting connections and drains in-flight requests, enforcement loops
// finish their current pass, and the database checkpoints before closing.
//
// # Example Usage
//
//	export PLEX_URL=http://localhost:32400
//	export DUCKDB_PATH=/data/streamwarden.db
//	export SERVICE_ACCOUNT_ID=1
//	./streamwarden
//
// With Tautulli and TMDB enrichment:
//
//	export TAUTULLI_ENABLED=true
//	export TAUTULLI_URL=http://localhost:8181
//	export TAUTULLI_API_KEY=your-api-key
//	export TMDB_ENABLED=true
//	export TMDB_API_KEY=your-tmdb-key
//	./streamwarden
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/streamwarden/streamwarden/internal/api"
	"github.com/streamwarden/streamwarden/internal/config"
	"github.com/streamwarden/streamwarden/internal/database"
	"github.com/streamwarden/streamwarden/internal/enforcement"
	"github.com/streamwarden/streamwarden/internal/logging"
	"github.com/streamwarden/streamwarden/internal/supervisor"
	"github.com/streamwarden/streamwarden/internal/supervisor/services"
	syncpkg "github.com/streamwarden/streamwarden/internal/sync"
)

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		// Config is not available yet, so the default logger reports this.
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("plex_url", cfg.Plex.URL).
		Str("db_path", cfg.Database.Path).
		Bool("tautulli_enabled", cfg.Tautulli.Enabled).
		Bool("tmdb_enabled", cfg.TMDB.Enabled).
		Msg("Starting Streamwarden")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized")

	factory := syncpkg.NewFactory(&cfg.Plex)

	// Tautulli is optional; the circuit breaker keeps a flapping instance
	// from dragging the proxy endpoints down with it.
	var tautulliClient syncpkg.TautulliClientInterface
	if cfg.Tautulli.Enabled {
		tautulliClient = syncpkg.NewCircuitBreakerClient(&cfg.Tautulli)
		if err := tautulliClient.Ping(context.Background()); err != nil {
			logging.Warn().Err(err).Msg("Failed to connect to Tautulli (will retry)")
		} else {
			logging.Info().Msg("Connected to Tautulli")
		}
	} else {
		logging.Info().Msg("Tautulli integration disabled")
	}

	var tmdbClient api.MetadataService
	if cfg.TMDB.Enabled {
		tmdbClient = syncpkg.NewTMDBClient(&cfg.TMDB)
		logging.Info().Msg("TMDB enrichment enabled")
	}

	// All three jobs are constructed regardless of their Enabled flag so
	// the status endpoint and manual triggers work; only enabled jobs get a
	// scheduled loop.
	sharingEnforcer := enforcement.NewSharingEnforcer(enforcement.SharingEnforcerConfig{
		ServiceAccountID: cfg.Enforcement.ServiceAccountID,
		Reason:           cfg.Enforcement.Sharing.Reason,
	}, db, factory)
	subscriptionEnforcer := enforcement.NewSubscriptionEnforcer(enforcement.SubscriptionEnforcerConfig{
		ServiceAccountID: cfg.Enforcement.ServiceAccountID,
		Reason:           cfg.Enforcement.Subscriptions.Reason,
	}, db, factory)
	sweeper := enforcement.NewSweeper(db)

	handler := api.NewHandler(cfg, db, db, factory, factory, tautulliClient, tmdbClient, api.Jobs{
		Sharing:       sharingEnforcer,
		Subscriptions: subscriptionEnforcer,
		Sweeper:       sweeper,
	})
	router := api.NewRouter(handler, api.NewChiMiddleware(api.NewChiMiddlewareConfig(&cfg.API)))

	serverTimeout := cfg.Server.Timeout
	if serverTimeout <= 0 {
		serverTimeout = 30 * time.Second
	}
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       serverTimeout,
		WriteTimeout:      serverTimeout,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddAPIService(services.NewHTTPServerService(httpServer, 10*time.Second))

	if cfg.Enforcement.Sharing.Enabled {
		tree.AddEnforcementService(services.NewEnforcementService(
			"sharing-enforcer", cfg.Enforcement.Sharing.Interval, sharingEnforcer.RunPass))
		logging.Info().Dur("interval", cfg.Enforcement.Sharing.Interval).Msg("Sharing enforcement enabled")
	}
	if cfg.Enforcement.Subscriptions.Enabled {
		tree.AddEnforcementService(services.NewEnforcementService(
			"subscription-enforcer", cfg.Enforcement.Subscriptions.Interval, subscriptionEnforcer.RunPass))
		logging.Info().Dur("interval", cfg.Enforcement.Subscriptions.Interval).Msg("Subscription enforcement enabled")
	}
	if cfg.Enforcement.Sweep.Enabled {
		tree.AddEnforcementService(services.NewEnforcementService(
			"expiration-sweeper", cfg.Enforcement.Sweep.Interval, func(ctx context.Context) error {
				return sweeper.RunPass(ctx, time.Now())
			}))
		logging.Info().Dur("interval", cfg.Enforcement.Sweep.Interval).Msg("Expiration sweep enabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", httpServer.Addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}
