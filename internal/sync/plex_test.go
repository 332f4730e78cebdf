// Streamwarden - Plex Session Reconciliation and Subscription Enforcement
// Copyright 2026 Streamwarden contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamwarden/streamwarden

package sync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/streamwarden/streamwarden/internal/config"
)

func newTestPlexClient(serverURL string) *PlexClient {
	return NewPlexClient(&config.PlexConfig{
		URL:     serverURL,
		Timeout: 5 * time.Second,
	}, "test-token")
}

func TestPlexClientListActiveSessions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status/sessions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("X-Plex-Token"); got != "test-token" {
			t.Errorf("X-Plex-Token = %q", got)
		}
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Errorf("Accept = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"MediaContainer": {
				"size": 1,
				"Metadata": [{
					"ratingKey": "101",
					"type": "movie",
					"title": "Arrival",
					"year": 2016,
					"User": {"id": "7", "title": "alice"},
					"Session": {"id": "sess-1", "location": "wan"},
					"Player": {"remotePublicAddress": "203.0.113.9", "state": "playing"}
				}]
			}
		}`))
	}))
	defer server.Close()

	sessions, err := newTestPlexClient(server.URL).ListActiveSessions(context.Background())
	if err != nil {
		t.Fatalf("ListActiveSessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	s := sessions[0]
	if s.Title != "Arrival" || s.User.Title != "alice" {
		t.Errorf("unexpected session %+v", s)
	}
	if s.Session.ID != "sess-1" {
		t.Errorf("Session.ID = %q", s.Session.ID)
	}
	if s.Player.RemotePublicAddress != "203.0.113.9" {
		t.Errorf("RemotePublicAddress = %q", s.Player.RemotePublicAddress)
	}
}

func TestPlexClientGetOwnIdentity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/myplex/account" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"MediaContainer": {
				"title": "The Admin",
				"username": "admin",
				"email": "admin@example.com"
			}
		}`))
	}))
	defer server.Close()

	identity, err := newTestPlexClient(server.URL).GetOwnIdentity(context.Background())
	if err != nil {
		t.Fatalf("GetOwnIdentity: %v", err)
	}
	if identity.Title != "The Admin" || identity.Username != "admin" || identity.Email != "admin@example.com" {
		t.Errorf("unexpected identity %+v", identity)
	}
}

func TestPlexClientTerminateSession(t *testing.T) {
	var gotSessionID, gotReason string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status/sessions/terminate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotSessionID = r.URL.Query().Get("sessionId")
		gotReason = r.URL.Query().Get("reason")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	err := newTestPlexClient(server.URL).TerminateSession(context.Background(), "sess-9", "stream stopped")
	if err != nil {
		t.Fatalf("TerminateSession: %v", err)
	}
	if gotSessionID != "sess-9" {
		t.Errorf("sessionId = %q", gotSessionID)
	}
	if gotReason != "stream stopped" {
		t.Errorf("reason = %q", gotReason)
	}
}

func TestPlexClientTerminateAcceptsNoContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	if err := newTestPlexClient(server.URL).TerminateSession(context.Background(), "sess-9", "x"); err != nil {
		t.Fatalf("204 should be accepted: %v", err)
	}
}

func TestPlexClientErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	if _, err := newTestPlexClient(server.URL).ListActiveSessions(context.Background()); err == nil {
		t.Fatal("expected error on HTTP 401")
	}
}

func TestPlexClientRetriesOnRateLimit(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"MediaContainer": {"size": 0}}`))
	}))
	defer server.Close()

	sessions, err := newTestPlexClient(server.URL).ListActiveSessions(context.Background())
	if err != nil {
		t.Fatalf("ListActiveSessions after retry: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("expected empty session list, got %d", len(sessions))
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}
