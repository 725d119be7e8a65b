// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package authz

import (
	"net/http"

	"github.com/tomtom215/animescope/internal/auth"
	"github.com/tomtom215/animescope/internal/logging"
)

// DeniedFunc writes the rejection. status is 401 for anonymous callers and
// 403 for signed-in callers lacking the role.
type DeniedFunc func(w http.ResponseWriter, r *http.Request, status int)

// Middleware authorizes requests by path and method. It must run after
// auth.SessionMiddleware.Authenticate.
type Middleware struct {
	enforcer *Enforcer
	denied   DeniedFunc
}

// NewMiddleware creates the middleware. A nil denied writes plain text.
func NewMiddleware(enforcer *Enforcer, denied DeniedFunc) *Middleware {
	if denied == nil {
		denied = func(w http.ResponseWriter, _ *http.Request, status int) {
			http.Error(w, http.StatusText(status), status)
		}
	}
	return &Middleware{enforcer: enforcer, denied: denied}
}

// AuthorizeRequest derives the action from the method and the object from
// the request path.
func (m *Middleware) AuthorizeRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role := RoleAnonymous
		if u := auth.UserFromContext(r.Context()); u != nil {
			role = u.Role
		}

		allowed, err := m.enforcer.Enforce(role, r.URL.Path, methodToAction(r.Method))
		if err != nil {
			logging.Ctx(r.Context()).Error().Err(err).Msg("Authorization error")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		if !allowed {
			status := http.StatusForbidden
			if role == RoleAnonymous {
				status = http.StatusUnauthorized
			}
			m.denied(w, r, status)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func methodToAction(method string) string {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return ActionWrite
	case http.MethodDelete:
		return ActionDelete
	default:
		return ActionRead
	}
}
