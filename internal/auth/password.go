// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for an unknown email or a wrong password.
var ErrInvalidCredentials = errors.New("invalid email or password")

// BcryptCost is the hashing cost for new passwords. Tests lower it.
var BcryptCost = 12

// dummyHash is compared against when the account does not exist so both
// failure paths take similar time.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("animescope-dummy-password"), bcrypt.MinCost)

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares password to hash. An empty hash still performs a
// comparison and fails.
func CheckPassword(hash, password string) error {
	h := []byte(hash)
	if len(h) == 0 {
		h = dummyHash
		_ = bcrypt.CompareHashAndPassword(h, []byte(password))
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(h, []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}
