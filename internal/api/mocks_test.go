// Streamwarden - Plex Session Reconciliation and Subscription Enforcement
// Copyright 2026 Streamwarden contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamwarden/streamwarden

package api

import (
	"context"
	"errors"

	"github.com/streamwarden/streamwarden/internal/config"
	"github.com/streamwarden/streamwarden/internal/enforcement"
	"github.com/streamwarden/streamwarden/internal/models"
	syncpkg "github.com/streamwarden/streamwarden/internal/sync"
)

// errSentinel stands in for any upstream failure in handler tests.
var errSentinel = errors.New("sentinel upstream failure")

func testConfig() *config.Config {
	return &config.Config{
		Server:      config.ServerConfig{AppURL: "https://requests.example.com"},
		Enforcement: config.EnforcementConfig{ServiceAccountID: 1},
	}
}

type mockUserStore struct {
	byID    map[int64]*models.LocalUser
	byName  map[string]*models.LocalUser
	findErr error
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{
		byID:   make(map[int64]*models.LocalUser),
		byName: make(map[string]*models.LocalUser),
	}
}

func (m *mockUserStore) withServiceAccount(token string) *mockUserStore {
	m.byID[1] = &models.LocalUser{ID: 1, PlexUsername: "service", PlexToken: token}
	return m
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
	return nil, nil
}

func (m *mockUserStore) UpdateSubscriptionStatus(_ context.Context, _ int64, _ string) error {
	return nil
}

type mockSessionService struct {
	sessions    []models.PlexSession
	listErr     error
	identity    *models.OwnerIdentity
	identityErr error
}

func (m *mockSessionService) ListActiveSessions(_ context.Context) ([]models.PlexSession, error) {
	return m.sessions, m.listErr
}

func (m *mockSessionService) TerminateSession(_ context.Context, _, _ string) error {
	return nil
}

func (m *mockSessionService) GetOwnIdentity(_ context.Context) (*models.OwnerIdentity, error) {
	return m.identity, m.identityErr
}

type mockMemberService struct {
	members []models.AccountMember
	listErr error
}

func (m *mockMemberService) ListAccountMembers(_ context.Context) ([]models.AccountMember, error) {
	return m.members, m.listErr
}

type mockClientFactory struct {
	plex   *mockSessionService
	plexTV *mockMemberService
}

func (m *mockClientFactory) Plex(_ string) enforcement.SessionService { return m.plex }

func (m *mockClientFactory) PlexTV(_ string) enforcement.MemberService { return m.plexTV }

type mockImageFetcher struct {
	result *syncpkg.ImageResult
	err    error
	paths  []string
	calls  int
}

func (m *mockImageFetcher) GetImage(_ context.Context, _, path string) (*syncpkg.ImageResult, error) {
	m.calls++
	m.paths = append(m.paths, path)
	return m.result, m.err
}

type mockTautulliClient struct {
	pingErr    error
	activity   *models.TautulliActivity
	topUsers   *models.TautulliHomeStats
	history    map[int]*models.TautulliHistory
	image      *syncpkg.ImageResult
	grabErr    error
	imageCalls int
}

func (m *mockTautulliClient) Ping(_ context.Context) error { return m.pingErr }

func (m *mockTautulliClient) GetActivity(_ context.Context) (*models.TautulliActivity, error) {
	return m.activity, m.grabErr
}

func (m *mockTautulliClient) GetTopUsers(_ context.Context, _, _ int) (*models.TautulliHomeStats, error) {
	return m.topUsers, m.grabErr
}

func (m *mockTautulliClient) GetUserHistory(_ context.Context, userID, _ int) (*models.TautulliHistory, error) {
	if h, ok := m.history[userID]; ok {
		return h, nil
	}
	return &models.TautulliHistory{}, nil
}

func (m *mockTautulliClient) PMSImageProxy(_ context.Context, _, _ string, _, _ int) (*syncpkg.ImageResult, error) {
	m.imageCalls++
	return m.image, m.grabErr
}

type mockMetadataService struct {
	enrichments map[string]*models.TMDBEnrichment
	err         error
	calls       int
}

func (m *mockMetadataService) Enrich(_ context.Context, _, title string, _ int) (*models.TMDBEnrichment, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if e, ok := m.enrichments[title]; ok {
		return e, nil
	}
	return &models.TMDBEnrichment{}, nil
}

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error { return m.err }
