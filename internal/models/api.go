// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package models

import "time"

// APIResponse is the envelope every JSON endpoint returns.
//
// Success:
//
//	{"success": true, "data": {...}, "meta": {"timestamp": "..."}}
//
// Failure:
//
//	{"success": false, "data": null, "error": {"code": "NOT_FOUND", "message": "..."}, "meta": {...}}
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    Meta        `json:"meta"`
}

// APIError describes a failed request.
type APIError struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// Error implements error so clients can return a decoded APIError as is.
func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}

// Meta carries response metadata. Paging fields are set on list endpoints.
type Meta struct {
	Timestamp time.Time `json:"timestamp"`
	Total     *int      `json:"total,omitempty"`
	Limit     int       `json:"limit,omitempty"`
	Offset    int       `json:"offset,omitempty"`
}

// Error codes used in APIError.Code.
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeNotFound            = "NOT_FOUND"
	CodeConflict            = "CONFLICT"
	CodeRateLimited         = "RATE_LIMITED"
	CodeUpstreamError       = "UPSTREAM_ERROR"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeInternal            = "INTERNAL_ERROR"
)

// AuthResult is returned by register and login. Token is a bearer token
// for clients that do not keep cookies.
type AuthResult struct {
	User      *User     `json:"user"`
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// FavoriteRequest is the body of POST /api/v1/favorites.
type FavoriteRequest struct {
	AnimeID int `json:"anime_id" validate:"required,gt=0"`
}

// FavoriteState reports one favorite flag after a write.
type FavoriteState struct {
	AnimeID  int  `json:"anime_id"`
	Favorite bool `json:"favorite"`
}

// CatalogPage is one page of a catalog listing.
type CatalogPage[T any] struct {
	Items   []T  `json:"items"`
	Page    int  `json:"page"`
	HasNext bool `json:"has_next"`
}
