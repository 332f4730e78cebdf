// Streamwarden - Plex Session Reconciliation and Subscription Enforcement
// Copyright 2026 Streamwarden contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamwarden/streamwarden

package enforcement

import (
	"github.com/streamwarden/streamwarden/internal/models"
)

// BuildMemberIndex maps display names to account members for O(1) resolution.
// When two members share a display name the first one wins.
func BuildMemberIndex(members []models.AccountMember) map[string]models.AccountMember {
	index := make(map[string]models.AccountMember, len(members))
	for _, m := range members {
		if m.DisplayName == "" {
			continue
		}
		if _, exists := index[m.DisplayName]; !exists {
			index[m.DisplayName] = m
		}
	}
	return index
}

// ResolveIdentity maps a session display name to a canonical username and
// email. Resolution order: the token holder's own identity, then the member
// index, then the raw display name as a degraded fallback. The returned bool
// is false only for the fallback case.
func ResolveIdentity(displayName string, index map[string]models.AccountMember, owner *models.OwnerIdentity) (username, email string, resolved bool) {
	if owner != nil && owner.Title != "" && displayName == owner.Title {
		return owner.Username, owner.Email, true
	}
	if member, ok := index[displayName]; ok {
		return member.Username, member.Email, true
	}
	// Degraded: the display name itself. Local user lookups may still match
	// when the display name equals the plex.tv username.
	return displayName, "", false
}

// Reconcile resolves raw Plex sessions into canonical per-user sessions.
//
// Sessions missing a session ID, a display name, or a remote public address
// are excluded: they cannot be attributed or terminated reliably. The input
// is never mutated and the output order follows the input order.
func Reconcile(sessions []models.PlexSession, members []models.AccountMember, owner *models.OwnerIdentity) []models.ResolvedSession {
	index := BuildMemberIndex(members)

	resolved := make([]models.ResolvedSession, 0, len(sessions))
	for _, s := range sessions {
		if s.Session == nil || s.Session.ID == "" {
			continue
		}
		if s.User == nil || s.User.Title == "" {
			continue
		}
		if s.Player == nil || s.Player.RemotePublicAddress == "" {
			continue
		}

		username, email, ok := ResolveIdentity(s.User.Title, index, owner)
		resolved = append(resolved, models.ResolvedSession{
			SessionID:        s.Session.ID,
			Username:         username,
			Email:            email,
			RemoteIP:         s.Player.RemotePublicAddress,
			UsernameResolved: ok,
		})
	}
	return resolved
}

// DetectDuplicateIPs flags accounts streaming from two different public IPs
// within one reconciled pass.
//
// The first session seen for a user is the baseline for the whole pass: every
// later session with a different IP is reported against that same baseline,
// and the baseline is never advanced. Multiple devices behind one IP are
// legitimate and produce nothing.
func DetectDuplicateIPs(sessions []models.ResolvedSession) []models.SharingIncident {
	type firstSeen struct {
		sessionID string
		ip        string
	}

	baseline := make(map[string]firstSeen)
	var incidents []models.SharingIncident

	for _, s := range sessions {
		prev, seen := baseline[s.Username]
		if !seen {
			baseline[s.Username] = firstSeen{sessionID: s.SessionID, ip: s.RemoteIP}
			continue
		}
		if prev.ip != s.RemoteIP {
			incidents = append(incidents, models.SharingIncident{
				Username:         s.Username,
				FirstSessionID:   prev.sessionID,
				FirstIP:          prev.ip,
				OffendingSession: s.SessionID,
				OffendingIP:      s.RemoteIP,
			})
		}
	}
	return incidents
}
