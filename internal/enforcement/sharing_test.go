// Streamwarden - Plex Session Reconciliation and Subscription Enforcement
// Copyright 2026 Streamwarden contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamwarden/streamwarden

package enforcement

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/streamwarden/streamwarden/internal/models"
)

const testReason = "account sharing detected"

func newSharingFixture(sessions []models.PlexSession) (*SharingEnforcer, *mockSessionService, *mockUserStore) {
	plex := &mockSessionService{
		sessions: sessions,
		identity: &models.OwnerIdentity{Title: "Owner", Username: "owner"},
	}
	store := newMockUserStore().withServiceAccount(1, "token-abc")
	factory := &mockClientFactory{plex: plex, plexTV: &mockMemberService{}}
	enforcer := NewSharingEnforcer(SharingEnforcerConfig{ServiceAccountID: 1, Reason: testReason}, store, factory)
	return enforcer, plex, store
}

func TestSharingEnforcerTerminatesBothSessions(t *testing.T) {
	enforcer, plex, _ := newSharingFixture([]models.PlexSession{
		session("s1", "alice", "1.1.1.1"),
		session("s2", "alice", "2.2.2.2"),
	})

	if err := enforcer.RunPass(context.Background()); err != nil {
		t.Fatalf("RunPass: %v", err)
	}

	terminated := plex.terminatedSessions()
	if len(terminated) != 2 {
		t.Fatalf("expected 2 terminations, got %d: %+v", len(terminated), terminated)
	}
	ids := []string{terminated[0].SessionID, terminated[1].SessionID}
	sort.Strings(ids)
	if ids[0] != "s1" || ids[1] != "s2" {
		t.Errorf("terminated sessions = %v, want [s1 s2]", ids)
	}
	for _, term := range terminated {
		if term.Reason != testReason {
			t.Errorf("termination reason = %q, want %q", term.Reason, testReason)
		}
	}

	status := enforcer.Status()
	if status.Incidents != 1 {
		t.Errorf("Incidents = %d, want 1", status.Incidents)
	}
	if status.Terminations != 2 {
		t.Errorf("Terminations = %d, want 2", status.Terminations)
	}
}

func TestSharingEnforcerIgnoresSameIPSessions(t *testing.T) {
	enforcer, plex, _ := newSharingFixture([]models.PlexSession{
		session("s1", "alice", "1.1.1.1"),
		session("s2", "alice", "1.1.1.1"),
		session("s3", "bob", "2.2.2.2"),
	})

	if err := enforcer.RunPass(context.Background()); err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	if terminated := plex.terminatedSessions(); len(terminated) != 0 {
		t.Errorf("expected no terminations, got %+v", terminated)
	}
}

func TestSharingEnforcerContinuesPastTerminationFailure(t *testing.T) {
	enforcer, plex, _ := newSharingFixture([]models.PlexSession{
		session("s1", "alice", "1.1.1.1"),
		session("s2", "alice", "2.2.2.2"),
	})
	plex.terminateErr = map[string]error{"s1": errors.New("gone")}

	if err := enforcer.RunPass(context.Background()); err != nil {
		t.Fatalf("RunPass should not fail on per-session errors: %v", err)
	}

	terminated := plex.terminatedSessions()
	if len(terminated) != 1 || terminated[0].SessionID != "s2" {
		t.Errorf("expected s2 to still be terminated, got %+v", terminated)
	}
}

func TestSharingEnforcerMissingServiceAccount(t *testing.T) {
	plex := &mockSessionService{sessions: []models.PlexSession{session("s1", "alice", "1.1.1.1")}}
	store := newMockUserStore()
	factory := &mockClientFactory{plex: plex, plexTV: &mockMemberService{}}
	enforcer := NewSharingEnforcer(SharingEnforcerConfig{ServiceAccountID: 42, Reason: testReason}, store, factory)

	err := enforcer.RunPass(context.Background())
	if !errors.Is(err, ErrPreconditionMissing) {
		t.Fatalf("expected ErrPreconditionMissing, got %v", err)
	}
	if len(factory.tokens) != 0 {
		t.Error("no upstream client should be built without a token")
	}
}

func TestSharingEnforcerMissingServiceToken(t *testing.T) {
	store := newMockUserStore()
	store.byID[1] = &models.LocalUser{ID: 1, PlexUsername: "service"}
	factory := &mockClientFactory{plex: &mockSessionService{}, plexTV: &mockMemberService{}}
	enforcer := NewSharingEnforcer(SharingEnforcerConfig{ServiceAccountID: 1, Reason: testReason}, store, factory)

	if err := enforcer.RunPass(context.Background()); !errors.Is(err, ErrPreconditionMissing) {
		t.Fatalf("expected ErrPreconditionMissing, got %v", err)
	}
}

func TestSharingEnforcerAbortsOnListingFailure(t *testing.T) {
	enforcer, plex, _ := newSharingFixture(nil)
	plex.listErr = errors.New("connection refused")

	err := enforcer.RunPass(context.Background())
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
	if terminated := plex.terminatedSessions(); len(terminated) != 0 {
		t.Errorf("no terminations expected after aborted pass, got %+v", terminated)
	}

	status := enforcer.Status()
	if status.LastError == "" {
		t.Error("Status should record the last pass error")
	}
}

func TestSharingEnforcerEmptySessionListShortCircuits(t *testing.T) {
	enforcer, plex, _ := newSharingFixture(nil)
	plex.identityErr = errors.New("should not be called")

	if err := enforcer.RunPass(context.Background()); err != nil {
		t.Fatalf("RunPass with no sessions: %v", err)
	}
}

func TestSharingEnforcerSkipsOverlappingPass(t *testing.T) {
	enforcer, _, _ := newSharingFixture(nil)
	if !enforcer.state.tryStart() {
		t.Fatal("tryStart failed on idle state")
	}
	defer enforcer.state.finish(nil)

	if err := enforcer.RunPass(context.Background()); !errors.Is(err, ErrPassInProgress) {
		t.Fatalf("expected ErrPassInProgress, got %v", err)
	}
}
