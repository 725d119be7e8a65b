// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tomtom215/animescope/internal/catalog"
	"github.com/tomtom215/animescope/internal/favorites"
	"github.com/tomtom215/animescope/internal/jikan"
	"github.com/tomtom215/animescope/internal/models"
)

var (
	// ErrForbidden is matched by 403 responses.
	ErrForbidden = errors.New("access denied")

	// ErrConflict is matched by 409 responses.
	ErrConflict = errors.New("conflict")
)

// Error is a non-2xx API response. It matches the sentinels of the
// packages whose errors the server mapped to its status, so callers can
// use errors.Is the same way against a local or a remote collaborator.
type Error struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("api error %d", e.Status)
	if e.Code != "" {
		msg += " " + e.Code
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Is maps the status to sentinel errors.
func (e *Error) Is(target error) bool {
	switch target {
	case favorites.ErrUnauthenticated:
		return e.Status == http.StatusUnauthorized
	case ErrForbidden:
		return e.Status == http.StatusForbidden
	case catalog.ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrConflict:
		return e.Status == http.StatusConflict
	case favorites.ErrInvalidID:
		return e.Status == http.StatusBadRequest && e.Code == models.CodeValidation
	case jikan.ErrTransientUpstream:
		return e.Status == http.StatusServiceUnavailable || e.Status == http.StatusTooManyRequests
	case jikan.ErrPermanentUpstream:
		return e.Status == http.StatusBadGateway
	}
	return false
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	return errors.Is(err, catalog.ErrNotFound)
}
