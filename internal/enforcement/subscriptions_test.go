// Streamwarden - Plex Session Reconciliation and Subscription Enforcement
// Copyright 2026 Streamwarden contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamwarden/streamwarden

package enforcement

import (
	"context"
	"errors"
	"testing"

	"github.com/streamwarden/streamwarden/internal/models"
)

const subscriptionReason = "subscription expired"

func newSubscriptionFixture(sessions []models.PlexSession, users map[string]*models.LocalUser) (*SubscriptionEnforcer, *mockSessionService) {
	plex := &mockSessionService{
		sessions: sessions,
		identity: &models.OwnerIdentity{Title: "Owner", Username: "owner"},
	}
	store := newMockUserStore().withServiceAccount(1, "token-abc")
	for name, u := range users {
		store.byName[name] = u
	}
	factory := &mockClientFactory{plex: plex, plexTV: &mockMemberService{}}
	enforcer := NewSubscriptionEnforcer(SubscriptionEnforcerConfig{ServiceAccountID: 1, Reason: subscriptionReason}, store, factory)
	return enforcer, plex
}

func TestSubscriptionEnforcerTerminations(t *testing.T) {
	tests := []struct {
		name           string
		user           *models.LocalUser
		wantTerminated bool
	}{
		{
			name:           "expired status is terminated",
			user:           &models.LocalUser{ID: 2, PlexUsername: "alice", SubscriptionStatus: models.SubscriptionExpired},
			wantTerminated: true,
		},
		{
			name:           "empty status is terminated",
			user:           &models.LocalUser{ID: 2, PlexUsername: "alice", SubscriptionStatus: ""},
			wantTerminated: true,
		},
		{
			name:           "active status is left alone",
			user:           &models.LocalUser{ID: 2, PlexUsername: "alice", SubscriptionStatus: models.SubscriptionActive},
			wantTerminated: false,
		},
		{
			name:           "unknown user is left alone",
			user:           nil,
			wantTerminated: false,
		},
		{
			name:           "unrecognized status is left alone",
			user:           &models.LocalUser{ID: 2, PlexUsername: "alice", SubscriptionStatus: "Trialing"},
			wantTerminated: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := map[string]*models.LocalUser{}
			if tt.user != nil {
				users["alice"] = tt.user
			}
			enforcer, plex := newSubscriptionFixture([]models.PlexSession{session("s1", "alice", "1.1.1.1")}, users)

			if err := enforcer.RunPass(context.Background()); err != nil {
				t.Fatalf("RunPass: %v", err)
			}

			terminated := plex.terminatedSessions()
			if tt.wantTerminated {
				if len(terminated) != 1 {
					t.Fatalf("expected 1 termination, got %+v", terminated)
				}
				if terminated[0].SessionID != "s1" || terminated[0].Reason != subscriptionReason {
					t.Errorf("unexpected termination %+v", terminated[0])
				}
			} else if len(terminated) != 0 {
				t.Errorf("expected no terminations, got %+v", terminated)
			}
		})
	}
}

func TestSubscriptionEnforcerMixedSessions(t *testing.T) {
	enforcer, plex := newSubscriptionFixture(
		[]models.PlexSession{
			session("s1", "alice", "1.1.1.1"),
			session("s2", "bob", "2.2.2.2"),
			session("s3", "carol", "3.3.3.3"),
		},
		map[string]*models.LocalUser{
			"alice": {ID: 2, PlexUsername: "alice", SubscriptionStatus: models.SubscriptionExpired},
			"bob":   {ID: 3, PlexUsername: "bob", SubscriptionStatus: models.SubscriptionActive},
		},
	)

	if err := enforcer.RunPass(context.Background()); err != nil {
		t.Fatalf("RunPass: %v", err)
	}

	terminated := plex.terminatedSessions()
	if len(terminated) != 1 || terminated[0].SessionID != "s1" {
		t.Errorf("expected only s1 terminated, got %+v", terminated)
	}
	if status := enforcer.Status(); status.Terminations != 1 {
		t.Errorf("Terminations = %d, want 1", status.Terminations)
	}
}

func TestSubscriptionEnforcerContinuesPastLookupFailure(t *testing.T) {
	plex := &mockSessionService{
		sessions: []models.PlexSession{
			session("s1", "alice", "1.1.1.1"),
			session("s2", "bob", "2.2.2.2"),
		},
		identity: &models.OwnerIdentity{Title: "Owner", Username: "owner"},
	}
	store := newMockUserStore().withServiceAccount(1, "token-abc")
	store.byName["bob"] = &models.LocalUser{ID: 3, PlexUsername: "bob", SubscriptionStatus: models.SubscriptionExpired}
	factory := &mockClientFactory{plex: plex, plexTV: &mockMemberService{}}
	enforcer := NewSubscriptionEnforcer(SubscriptionEnforcerConfig{ServiceAccountID: 1, Reason: subscriptionReason}, &failingLookupStore{mockUserStore: store, failFor: "alice"}, factory)

	if err := enforcer.RunPass(context.Background()); err != nil {
		t.Fatalf("RunPass should tolerate per-user lookup failures: %v", err)
	}

	terminated := plex.terminatedSessions()
	if len(terminated) != 1 || terminated[0].SessionID != "s2" {
		t.Errorf("expected s2 terminated despite alice lookup failure, got %+v", terminated)
	}
}

func TestSubscriptionEnforcerAbortsOnListingFailure(t *testing.T) {
	enforcer, plex := newSubscriptionFixture(nil, nil)
	plex.listErr = errors.New("timeout")

	if err := enforcer.RunPass(context.Background()); !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestSubscriptionEnforcerMissingServiceAccount(t *testing.T) {
	store := newMockUserStore()
	factory := &mockClientFactory{plex: &mockSessionService{}, plexTV: &mockMemberService{}}
	enforcer := NewSubscriptionEnforcer(SubscriptionEnforcerConfig{ServiceAccountID: 7, Reason: subscriptionReason}, store, factory)

	if err := enforcer.RunPass(context.Background()); !errors.Is(err, ErrPreconditionMissing) {
		t.Fatalf("expected ErrPreconditionMissing, got %v", err)
	}
}

// failingLookupStore wraps a mockUserStore and fails lookups for one username.
type failingLookupStore struct {
	*mockUserStore
	failFor string
}

func (f *failingLookupStore) FindByPlexUsername(ctx context.Context, username string) (*models.LocalUser, error) {
	if username == f.failFor {
		return nil, errors.New("database locked")
	}
	return f.mockUserStore.FindByPlexUsername(ctx, username)
}
