// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tomtom215/animescope/internal/auth"
	"github.com/tomtom215/animescope/internal/database"
	"github.com/tomtom215/animescope/internal/logging"
	"github.com/tomtom215/animescope/internal/models"
)

// RegisterRequest is the body of POST /api/v1/auth/register.
type RegisterRequest struct {
	FirstName string `json:"first_name" validate:"required,notblank,max=100"`
	LastName  string `json:"last_name" validate:"required,notblank,max=100"`
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required,min=6,max=72"`
}

func (r *RegisterRequest) normalize() {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = database.NormalizeEmail(r.Email)
}

// LoginRequest is the body of POST /api/v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (r *LoginRequest) normalize() {
	r.Email = database.NormalizeEmail(r.Email)
}

// Register creates an account. The first account becomes an admin. It does
// not log the caller in.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if minLen := h.config.Security.MinPasswordLength; len(req.Password) < minLen {
		respondError(w, r, http.StatusBadRequest, models.CodeValidation,
			fmt.Sprintf("password must be at least %d characters", minLen), nil)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, models.CodeInternal, "Internal server error", err)
		return
	}
	u := &models.User{
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PasswordHash: hash,
	}
	if err := h.users.Create(r.Context(), u); err != nil {
		if errors.Is(err, database.ErrConflict) {
			respondError(w, r, http.StatusConflict, models.CodeConflict, "An account with this email already exists", nil)
			return
		}
		respondServiceError(w, r, err)
		return
	}

	logging.Ctx(r.Context()).Info().Int64("user_id", u.ID).Str("role", u.Role).Msg("Account registered")
	h.audit.LogUserCreated(r, u)
	respondData(w, http.StatusCreated, u)
}

// Login verifies credentials and starts a session. The response carries a
// bearer token for clients without cookies.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx := r.Context()

	u, err := h.users.GetByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		respondServiceError(w, r, err)
		return
	}
	var hash string
	if u != nil {
		hash = u.PasswordHash
	}
	if err := auth.CheckPassword(hash, req.Password); err != nil {
		h.audit.LogLoginFailure(r, req.Email)
		respondError(w, r, http.StatusUnauthorized, models.CodeUnauthorized, "Invalid email or password", nil)
		return
	}

	old := auth.SessionIDFromContext(ctx)
	if old != "" {
		h.lists.CloseSession(old)
	}
	sess, err := h.sessions.Login(ctx, w, u, old)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, models.CodeInternal, "Failed to create session", err)
		return
	}
	token, err := h.sessions.Token(sess, u.Role)
	if err != nil {
		logging.Ctx(ctx).Debug().Err(err).Msg("No bearer token issued")
	}

	logging.Ctx(ctx).Info().Int64("user_id", u.ID).Msg("User logged in")
	h.audit.LogLogin(r, u, sess.ID)
	respondData(w, http.StatusOK, models.AuthResult{User: u, Token: token, ExpiresAt: sess.ExpiresAt})
}

// Logout ends the caller's session and closes its lists. Anonymous callers
// get the same success response.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid := auth.SessionIDFromContext(ctx)
	if err := h.sessions.Logout(ctx, w, sid); err != nil {
		respondError(w, r, http.StatusInternalServerError, models.CodeInternal, "Failed to log out", err)
		return
	}
	if sid != "" {
		h.lists.CloseSession(sid)
		h.audit.LogLogout(r, sid)
	}
	respondData(w, http.StatusOK, map[string]bool{"logged_out": true})
}

// CurrentUser returns the caller's account, or null when anonymous.
func (h *Handler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	if u == nil {
		respondData(w, http.StatusOK, nil)
		return
	}
	respondData(w, http.StatusOK, u)
}
