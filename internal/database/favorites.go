// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package database

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidAnimeID rejects ids that are not positive.
var ErrInvalidAnimeID = errors.New("anime_id must be a positive integer")

// FavoriteStore persists per-user favorite anime ids.
type FavoriteStore struct {
	db *DB
}

// List returns the ids userID marked, newest first.
func (s *FavoriteStore) List(ctx context.Context, userID int64) (ids []int, err error) {
	start := time.Now()
	defer func() { observe("select", "favorites", start, err) }()

	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT anime_id FROM favorites WHERE user_id = ? ORDER BY seq DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	defer rows.Close()

	ids = make([]int, 0)
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan favorite: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating favorites: %w", err)
	}
	return ids, nil
}

// Add marks animeID for userID. Adding an existing favorite is a no-op and
// reports created=false.
func (s *FavoriteStore) Add(ctx context.Context, userID int64, animeID int) (created bool, err error) {
	start := time.Now()
	defer func() { observe("insert", "favorites", start, err) }()

	if animeID <= 0 {
		return false, ErrInvalidAnimeID
	}
	res, err := s.db.conn.ExecContext(ctx,
		`INSERT INTO favorites (user_id, anime_id, created_at) VALUES (?, ?, ?) ON CONFLICT DO NOTHING`,
		userID, animeID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to add favorite: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, nil
	}
	return n > 0, nil
}

// Remove unmarks animeID. Removing a missing favorite is not an error.
func (s *FavoriteStore) Remove(ctx context.Context, userID int64, animeID int) (err error) {
	start := time.Now()
	defer func() { observe("delete", "favorites", start, err) }()

	if animeID <= 0 {
		return ErrInvalidAnimeID
	}
	if _, err = s.db.conn.ExecContext(ctx,
		`DELETE FROM favorites WHERE user_id = ? AND anime_id = ?`, userID, animeID); err != nil {
		return fmt.Errorf("failed to remove favorite: %w", err)
	}
	return nil
}

// Exists reports whether userID marked animeID.
func (s *FavoriteStore) Exists(ctx context.Context, userID int64, animeID int) (bool, error) {
	var n int
	err := s.db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM favorites WHERE user_id = ? AND anime_id = ?`, userID, animeID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check favorite: %w", err)
	}
	return n > 0, nil
}

// ForUser binds the store to one account so it can back a favorites
// overlay for that account's session.
func (s *FavoriteStore) ForUser(userID int64) *UserFavorites {
	return &UserFavorites{store: s, userID: userID}
}

// UserFavorites is a FavoriteStore scoped to one user.
type UserFavorites struct {
	store  *FavoriteStore
	userID int64

	// AfterAdd runs after a successful add, for example to refresh the
	// metadata cache. Its error is ignored.
	AfterAdd func(ctx context.Context, animeID int)
}

// ListFavoriteIDs returns the user's ids, newest first.
func (u *UserFavorites) ListFavoriteIDs(ctx context.Context) ([]int, error) {
	return u.store.List(ctx, u.userID)
}

// AddFavorite marks animeID.
func (u *UserFavorites) AddFavorite(ctx context.Context, animeID int) error {
	if _, err := u.store.Add(ctx, u.userID, animeID); err != nil {
		return err
	}
	if u.AfterAdd != nil {
		u.AfterAdd(ctx, animeID)
	}
	return nil
}

// RemoveFavorite unmarks animeID.
func (u *UserFavorites) RemoveFavorite(ctx context.Context, animeID int) error {
	return u.store.Remove(ctx, u.userID, animeID)
}
