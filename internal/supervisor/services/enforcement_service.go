// Streamwarden - Plex Session Reconciliation and Subscription Enforcement
// Copyright 2026 Streamwarden contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamwarden/streamwarden

package services

import (
	"context"
	"errors"
	"time"

	"github.com/streamwarden/streamwarden/internal/enforcement"
	"github.com/streamwarden/streamwarden/internal/logging"
)

// defaultPassInterval applies when the configuration leaves an interval
// unset.
const defaultPassInterval = time.Minute

// PassRunner runs one enforcement pass. The enforcement package's RunPass
// methods satisfy it directly or via a small closure.
type PassRunner func(ctx context.Context) error

// EnforcementService runs an enforcement pass on a fixed interval.
//
// The first pass runs immediately on start. Pass errors are logged and
// swallowed: an unreachable upstream must not crash the loop and trigger
// suture restarts, because the next tick retries anyway. A pass that is
// refused because the previous one is still running is logged at debug
// level only.
type EnforcementService struct {
	name     string
	interval time.Duration
	run      PassRunner
}

// NewEnforcementService creates a pass loop service.
//
//	svc := services.NewEnforcementService("sharing-enforcer", cfg.Interval, enforcer.RunPass)
//	tree.AddEnforcementService(svc)
func NewEnforcementService(name string, interval time.Duration, run PassRunner) *EnforcementService {
	if interval <= 0 {
		interval = defaultPassInterval
	}
	return &EnforcementService{
		name:     name,
		interval: interval,
		run:      run,
	}
}

// Serve implements suture.Service.
func (s *EnforcementService) Serve(ctx context.Context) error {
	s.runPass(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runPass(ctx)
		}
	}
}

func (s *EnforcementService) runPass(ctx context.Context) {
	err := s.run(ctx)
	switch {
	case err == nil:
	case errors.Is(err, enforcement.ErrPassInProgress):
		logging.Debug().Str("service", s.name).Msg("Pass still running, tick skipped")
	case errors.Is(err, context.Canceled):
	default:
		logging.Error().Err(err).Str("service", s.name).Msg("Enforcement pass failed")
	}
}

// String implements fmt.Stringer; suture uses it in log messages.
func (s *EnforcementService) String() string {
	return s.name
}
