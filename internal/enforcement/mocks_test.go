// Streamwarden - Plex Session Reconciliation and Subscription Enforcement
// Copyright 2026 Streamwarden contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamwarden/streamwarden

package enforcement

import (
	"context"
	"sync"

	"github.com/streamwarden/streamwarden/internal/models"
)

type termination struct {
	SessionID string
	Reason    string
}

type mockSessionService struct {
	mu           sync.Mutex
	sessions     []models.PlexSession
	listErr      error
	identity     *models.OwnerIdentity
	identityErr  error
	terminateErr map[string]error
	terminated   []termination
}

func (m *mockSessionService) ListActiveSessions(_ context.Context) ([]models.PlexSession, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.sessions, nil
}

func (m *mockSessionService) TerminateSession(_ context.Context, sessionID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.terminateErr[sessionID]; ok {
		return err
	}
	m.terminated = append(m.terminated, termination{SessionID: sessionID, Reason: reason})
	return nil
}

func (m *mockSessionService) GetOwnIdentity(_ context.Context) (*models.OwnerIdentity, error) {
	if m.identityErr != nil {
		return nil, m.identityErr
	}
	return m.identity, nil
}

func (m *mockSessionService) terminatedSessions() []termination {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]termination, len(m.terminated))
	copy(out, m.terminated)
	return out
}

type mockMemberService struct {
	members []models.AccountMember
	listErr error
}

func (m *mockMemberService) ListAccountMembers(_ context.Context) ([]models.AccountMember, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.members, nil
}

type mockClientFactory struct {
	plex   *mockSessionService
	plexTV *mockMemberService
	mu     sync.Mutex
	tokens []string
}

func (m *mockClientFactory) Plex(token string) SessionService {
	m.mu.Lock()
	m.tokens = append(m.tokens, token)
	m.mu.Unlock()
	return m.plex
}

func (m *mockClientFactory) PlexTV(token string) MemberService {
	m.mu.Lock()
	m.tokens = append(m.tokens, token)
	m.mu.Unlock()
	return m.plexTV
}

type mockUserStore struct {
	mu        sync.Mutex
	byID      map[int64]*models.LocalUser
	byName    map[string]*models.LocalUser
	active    []models.LocalUser
	findErr   error
	listErr   error
	updateErr error
	updated   map[int64]string
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{
		byID:    make(map[int64]*models.LocalUser),
		byName:  make(map[string]*models.LocalUser),
		updated: make(map[int64]string),
	}
}

func (m *mockUserStore) FindByID(_ context.Context, id int64) (*models.LocalUser, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.byID[id], nil
}

func (m *mockUserStore) FindByPlexUsername(_ context.Context, username string) (*models.LocalUser, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.byName[username], nil
}

func (m *mockUserStore) ListByStatus(_ context.Context, _ string) ([]models.LocalUser, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.active, nil
}

func (m *mockUserStore) UpdateSubscriptionStatus(_ context.Context, id int64, status string) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.mu.Lock()
	m.updated[id] = status
	m.mu.Unlock()
	return nil
}

func (m *mockUserStore) withServiceAccount(id int64, token string) *mockUserStore {
	m.byID[id] = &models.LocalUser{ID: id, PlexUsername: "service", PlexToken: token}
	return m
}
