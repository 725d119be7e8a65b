// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/animescope/internal/models"
)

// UserStore persists accounts.
type UserStore struct {
	db *DB
}

const userColumns = `id, email, first_name, last_name, password_hash, role, created_at`

// NormalizeEmail trims and lowercases an address the way it is stored.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create inserts u and fills its ID, Role and CreatedAt. The first account
// ever created becomes an admin; later ones are users. A taken email
// returns ErrConflict.
func (s *UserStore) Create(ctx context.Context, u *models.User) (err error) {
	start := time.Now()
	defer func() { observe("insert", "users", start, err) }()

	s.db.writeMu.Lock()
	defer s.db.writeMu.Unlock()

	u.Email = NormalizeEmail(u.Email)
	u.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)

	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var count int
	if err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}
	u.Role = models.RoleUser
	if count == 0 {
		u.Role = models.RoleAdmin
	}

	err = tx.QueryRowContext(ctx,
		`INSERT INTO users (email, first_name, last_name, password_hash, role, created_at)
		 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
		u.Email, strings.TrimSpace(u.FirstName), strings.TrimSpace(u.LastName), u.PasswordHash, u.Role, u.CreatedAt,
	).Scan(&u.ID)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrConflict
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	if err = tx.Commit(); err != nil {
		if isUniqueConstraintError(err) {
			return ErrConflict
		}
		return fmt.Errorf("failed to commit user: %w", err)
	}
	return nil
}

// Get returns the account with id.
func (s *UserStore) Get(ctx context.Context, id int64) (u *models.User, err error) {
	start := time.Now()
	defer func() { observe("select", "users", start, err) }()

	row := s.db.conn.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetByEmail looks an account up by its normalized address.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (u *models.User, err error) {
	start := time.Now()
	defer func() { observe("select", "users", start, err) }()

	row := s.db.conn.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, NormalizeEmail(email))
	return scanUser(row)
}

// List returns every account, oldest first.
func (s *UserStore) List(ctx context.Context) (users []models.User, err error) {
	start := time.Now()
	defer func() { observe("select", "users", start, err) }()

	rows, err := s.db.conn.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users = make([]models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

// UpdateRole sets the role of id.
func (s *UserStore) UpdateRole(ctx context.Context, id int64, role string) (err error) {
	start := time.Now()
	defer func() { observe("update", "users", start, err) }()

	if !models.ValidRole(role) {
		return fmt.Errorf("invalid role %q", role)
	}
	res, err := s.db.conn.ExecContext(ctx, `UPDATE users SET role = ? WHERE id = ?`, role, id)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	return requireAffected(res)
}

// Delete removes the account and its favorites.
func (s *UserStore) Delete(ctx context.Context, id int64) (err error) {
	start := time.Now()
	defer func() { observe("delete", "users", start, err) }()

	s.db.writeMu.Lock()
	defer s.db.writeMu.Unlock()

	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM favorites WHERE user_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete favorites: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if err = requireAffected(res); err != nil {
		return err
	}
	return tx.Commit()
}

// Count returns the number of accounts.
func (s *UserStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &u, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
