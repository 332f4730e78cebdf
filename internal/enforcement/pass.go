// Streamwarden - Plex Session Reconciliation and Subscription Enforcement
// Copyright 2026 Streamwarden contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamwarden/streamwarden

package enforcement

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// serviceToken loads the service account's Plex token at pass time.
// A missing record or empty token is a precondition failure, not an upstream
// one: nothing has been called yet and the pass must not start.
func serviceToken(ctx context.Context, store UserStore, id int64) (string, error) {
	user, err := store.FindByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("loading service account %d: %w", id, err)
	}
	if user == nil || user.PlexToken == "" {
		return "", fmt.Errorf("%w: service account %d not found or has no Plex token", ErrPreconditionMissing, id)
	}
	return user.PlexToken, nil
}

// jobState serializes passes for one job and tracks status for the API.
// Triggers arriving while a pass runs are dropped, never queued.
type jobState struct {
	mu          sync.Mutex
	running     bool
	lastRun     time.Time
	lastSuccess time.Time
	lastError   string
}

// tryStart marks the job running. It returns false when a pass is already in
// flight.
func (j *jobState) tryStart() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return false
	}
	j.running = true
	j.lastRun = time.Now()
	return true
}

// finish records the pass outcome and releases the job.
func (j *jobState) finish(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.running = false
	if err != nil {
		j.lastError = err.Error()
		return
	}
	j.lastError = ""
	j.lastSuccess = time.Now()
}

// fill copies the shared state fields into a status snapshot.
func (j *jobState) fill(status *JobStatus) {
	j.mu.Lock()
	defer j.mu.Unlock()
	status.Running = j.running
	status.LastRun = j.lastRun
	status.LastSuccess = j.lastSuccess
	status.LastError = j.lastError
}
