// Streamwarden - Plex Session Reconciliation and Subscription Enforcement
// Copyright 2026 Streamwarden contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamwarden/streamwarden

package enforcement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/streamwarden/streamwarden/internal/models"
)

func TestParseExpiration(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    time.Time
		wantErr bool
	}{
		{
			name:  "rfc3339",
			value: "2026-03-15T10:30:00Z",
			want:  time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC),
		},
		{
			name:  "datetime without zone",
			value: "2026-03-15T10:30:00",
			want:  time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC),
		},
		{
			name:  "space separated datetime",
			value: "2026-03-15 10:30:00",
			want:  time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC),
		},
		{
			name:  "date only",
			value: "2026-03-15",
			want:  time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:    "garbage",
			value:   "next tuesday",
			wantErr: true,
		},
		{
			name:    "empty",
			value:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseExpiration(tt.value)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got %v", tt.value, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseExpiration(%q): %v", tt.value, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseExpiration(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestSweeperTransitions(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		expiration string
		wantSwept  bool
	}{
		{name: "past expiration lapses", expiration: "2026-05-31T23:59:59Z", wantSwept: true},
		{name: "future expiration stays active", expiration: "2026-06-02T00:00:00Z", wantSwept: false},
		{name: "expiration equal to now stays active", expiration: "2026-06-01T12:00:00Z", wantSwept: false},
		{name: "empty expiration never lapses", expiration: "", wantSwept: false},
		{name: "unparsable expiration is skipped", expiration: "not-a-date", wantSwept: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockUserStore()
			store.active = []models.LocalUser{
				{ID: 5, PlexUsername: "alice", SubscriptionStatus: models.SubscriptionActive, SubscriptionExpiration: tt.expiration},
			}
			sweeper := NewSweeper(store)

			if err := sweeper.RunPass(context.Background(), now); err != nil {
				t.Fatalf("RunPass: %v", err)
			}

			status, swept := store.updated[5]
			if swept != tt.wantSwept {
				t.Fatalf("swept = %v, want %v (updates: %v)", swept, tt.wantSwept, store.updated)
			}
			if swept && status != models.SubscriptionExpired {
				t.Errorf("status = %q, want %q", status, models.SubscriptionExpired)
			}
		})
	}
}

func TestSweeperHandlesMixedBatch(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newMockUserStore()
	store.active = []models.LocalUser{
		{ID: 1, PlexUsername: "alice", SubscriptionStatus: models.SubscriptionActive, SubscriptionExpiration: "2026-01-01"},
		{ID: 2, PlexUsername: "bob", SubscriptionStatus: models.SubscriptionActive, SubscriptionExpiration: "broken"},
		{ID: 3, PlexUsername: "carol", SubscriptionStatus: models.SubscriptionActive, SubscriptionExpiration: "2027-01-01"},
		{ID: 4, PlexUsername: "dave", SubscriptionStatus: models.SubscriptionActive, SubscriptionExpiration: "2026-05-30 08:00:00"},
	}
	sweeper := NewSweeper(store)

	if err := sweeper.RunPass(context.Background(), now); err != nil {
		t.Fatalf("RunPass: %v", err)
	}

	if len(store.updated) != 2 {
		t.Fatalf("expected 2 transitions, got %v", store.updated)
	}
	for _, id := range []int64{1, 4} {
		if store.updated[id] != models.SubscriptionExpired {
			t.Errorf("user %d not marked expired: %v", id, store.updated)
		}
	}
	if status := sweeper.Status(); status.Transitions != 2 {
		t.Errorf("Transitions = %d, want 2", status.Transitions)
	}
}

func TestSweeperOnlyAdvancesActiveRecords(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newMockUserStore()
	// A stale status query result must not be expired a second time.
	store.active = []models.LocalUser{
		{ID: 1, PlexUsername: "alice", SubscriptionStatus: models.SubscriptionExpired, SubscriptionExpiration: "2026-01-01"},
		{ID: 2, PlexUsername: "bob", SubscriptionStatus: models.SubscriptionActive, SubscriptionExpiration: "2026-01-01"},
	}
	sweeper := NewSweeper(store)

	if err := sweeper.RunPass(context.Background(), now); err != nil {
		t.Fatalf("RunPass: %v", err)
	}

	if len(store.updated) != 1 || store.updated[2] != models.SubscriptionExpired {
		t.Errorf("only bob should transition, got %v", store.updated)
	}
}

func TestSweeperIsIdempotent(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newMockUserStore()
	store.active = []models.LocalUser{
		{ID: 1, PlexUsername: "alice", SubscriptionStatus: models.SubscriptionActive, SubscriptionExpiration: "2026-01-01"},
	}
	sweeper := NewSweeper(store)

	if err := sweeper.RunPass(context.Background(), now); err != nil {
		t.Fatalf("first pass: %v", err)
	}

	// A swept user no longer appears in the active listing.
	store.active = nil
	store.updated = map[int64]string{}

	if err := sweeper.RunPass(context.Background(), now); err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if len(store.updated) != 0 {
		t.Errorf("second pass should not touch anyone, got %v", store.updated)
	}
}

func TestSweeperContinuesPastUpdateFailure(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newMockUserStore()
	store.active = []models.LocalUser{
		{ID: 1, PlexUsername: "alice", SubscriptionStatus: models.SubscriptionActive, SubscriptionExpiration: "2026-01-01"},
		{ID: 2, PlexUsername: "bob", SubscriptionStatus: models.SubscriptionActive, SubscriptionExpiration: "2026-01-01"},
	}
	store.updateErr = errors.New("database locked")
	sweeper := NewSweeper(store)

	if err := sweeper.RunPass(context.Background(), now); err != nil {
		t.Fatalf("RunPass should tolerate per-user update failures: %v", err)
	}
}

func TestSweeperAbortsOnListingFailure(t *testing.T) {
	store := newMockUserStore()
	store.listErr = errors.New("timeout")
	sweeper := NewSweeper(store)

	err := sweeper.RunPass(context.Background(), time.Now())
	if err == nil {
		t.Fatal("expected listing failure to abort the pass")
	}
	if !errors.Is(err, store.listErr) {
		t.Errorf("error should wrap the listing failure, got %v", err)
	}
}
