// Streamwarden - Plex Session Reconciliation and Subscription Enforcement
// Copyright 2026 Streamwarden contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamwarden/streamwarden

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/streamwarden/streamwarden/internal/logging"
	"github.com/streamwarden/streamwarden/internal/metrics"
	"github.com/streamwarden/streamwarden/internal/models"
)

const userColumns = `id, plex_username, COALESCE(email, ''), COALESCE(avatar, ''),
	COALESCE(plex_token, ''), subscription_status, COALESCE(subscription_expiration, '')`

// scanUser scans one users row into a LocalUser.
func scanUser(row *sql.Row) (*models.LocalUser, error) {
	var user models.LocalUser
	err := row.Scan(
		&user.ID,
		&user.PlexUsername,
		&user.Email,
		&user.Avatar,
		&user.PlexToken,
		&user.SubscriptionStatus,
		&user.SubscriptionExpiration,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID returns the user with the given id, or (nil, nil) when no such
// user exists.
func (db *DB) FindByID(ctx context.Context, id int64) (*models.LocalUser, error) {
	start := time.Now()
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = ?`, userColumns)

	user, err := scanUser(db.conn.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		metrics.RecordDBQuery("select", "users", time.Since(start), nil)
		return nil, nil
	}
	metrics.RecordDBQuery("select", "users", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("find user %d: %w", id, err)
	}
	return user, nil
}

// FindByPlexUsername returns the user with the given Plex username, or
// (nil, nil) when no such user exists.
//
// Usernames should be unique, but the shared schema does not enforce it.
// When duplicates exist the lowest id wins and the collision is reported,
// since enforcement decisions against an ambiguous account are suspect.
func (db *DB) FindByPlexUsername(ctx context.Context, username string) (*models.LocalUser, error) {
	start := time.Now()

	var count int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE plex_username = ?`, username).Scan(&count); err != nil {
		metrics.RecordDBQuery("select", "users", time.Since(start), err)
		return nil, fmt.Errorf("count users named %q: %w", username, err)
	}
	if count == 0 {
		metrics.RecordDBQuery("select", "users", time.Since(start), nil)
		return nil, nil
	}
	if count > 1 {
		logging.Ctx(ctx).Warn().
			Str("username", username).
			Int("count", count).
			Msg("Multiple local users share a Plex username")
	}

	query := fmt.Sprintf(`SELECT %s FROM users WHERE plex_username = ? ORDER BY id LIMIT 1`, userColumns)
	user, err := scanUser(db.conn.QueryRowContext(ctx, query, username))
	metrics.RecordDBQuery("select", "users", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("find user %q: %w", username, err)
	}
	return user, nil
}

// ListByStatus returns all users with the given subscription status.
func (db *DB) ListByStatus(ctx context.Context, status string) ([]models.LocalUser, error) {
	start := time.Now()
	query := fmt.Sprintf(`SELECT %s FROM users WHERE subscription_status = ? ORDER BY id`, userColumns)

	rows, err := db.conn.QueryContext(ctx, query, status)
	metrics.RecordDBQuery("select", "users", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("list users with status %q: %w", status, err)
	}
	defer func() { _ = rows.Close() }()

	var users []models.LocalUser
	for rows.Next() {
		var user models.LocalUser
		if err := rows.Scan(
			&user.ID,
			&user.PlexUsername,
			&user.Email,
			&user.Avatar,
			&user.PlexToken,
			&user.SubscriptionStatus,
			&user.SubscriptionExpiration,
		); err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user rows: %w", err)
	}
	return users, nil
}

// UpdateSubscriptionStatus sets a user's subscription status.
func (db *DB) UpdateSubscriptionStatus(ctx context.Context, id int64, status string) error {
	start := time.Now()
	result, err := db.conn.ExecContext(ctx,
		`UPDATE users SET subscription_status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, id)
	metrics.RecordDBQuery("update", "users", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("update subscription status for user %d: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("update subscription status: user %d not found", id)
	}
	return nil
}

// UpsertUser inserts or replaces a user record. The request app owns user
// lifecycle in production; this exists for seeding and tests.
func (db *DB) UpsertUser(ctx context.Context, user *models.LocalUser) error {
	start := time.Now()
	_, err := db.conn.ExecContext(ctx, `INSERT INTO users (
		id, plex_username, email, avatar, plex_token,
		subscription_status, subscription_expiration
	) VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		plex_username = EXCLUDED.plex_username,
		email = EXCLUDED.email,
		avatar = EXCLUDED.avatar,
		plex_token = EXCLUDED.plex_token,
		subscription_status = EXCLUDED.subscription_status,
		subscription_expiration = EXCLUDED.subscription_expiration,
		updated_at = CURRENT_TIMESTAMP`,
		user.ID, user.PlexUsername, user.Email, user.Avatar, user.PlexToken,
		user.SubscriptionStatus, user.SubscriptionExpiration)
	metrics.RecordDBQuery("upsert", "users", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("upsert user %d: %w", user.ID, err)
	}
	return nil
}
