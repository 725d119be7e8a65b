// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/tomtom215/animescope/internal/logging"
	"github.com/tomtom215/animescope/internal/models"
)

// ErrUserNotFound is returned by a UserLoader for a deleted account.
var ErrUserNotFound = errors.New("user not found")

// UserLoader resolves a session's account.
type UserLoader interface {
	LoadUser(ctx context.Context, id int64) (*models.User, error)
}

// UserLoaderFunc adapts a function to UserLoader.
type UserLoaderFunc func(ctx context.Context, id int64) (*models.User, error)

// LoadUser implements UserLoader.
func (f UserLoaderFunc) LoadUser(ctx context.Context, id int64) (*models.User, error) {
	return f(ctx, id)
}

type contextKey int

const (
	userKeyCtx contextKey = iota
	sessionKeyCtx
)

// ContextWithUser attaches the authenticated account and its session id.
func ContextWithUser(ctx context.Context, u *models.User, sessionID string) context.Context {
	ctx = context.WithValue(ctx, userKeyCtx, u)
	ctx = context.WithValue(ctx, sessionKeyCtx, sessionID)
	if u != nil {
		ctx = logging.ContextWithUserID(ctx, u.ID)
	}
	return ctx
}

// UserFromContext returns the authenticated account or nil.
func UserFromContext(ctx context.Context) *models.User {
	u, _ := ctx.Value(userKeyCtx).(*models.User)
	return u
}

// SessionIDFromContext returns the session id of the authenticated request.
func SessionIDFromContext(ctx context.Context) string {
	s, _ := ctx.Value(sessionKeyCtx).(string)
	return s
}

// SessionMiddlewareConfig configures SessionMiddleware.
type SessionMiddlewareConfig struct {
	CookieName     string
	SessionTTL     time.Duration
	SlidingSession bool
	CookiePath     string
	CookieSecure   bool
	CookieSameSite http.SameSite

	// Unauthorized writes the 401 response for RequireAuth.
	Unauthorized http.HandlerFunc
}

// DefaultSessionMiddlewareConfig returns browser-friendly defaults.
func DefaultSessionMiddlewareConfig() *SessionMiddlewareConfig {
	return &SessionMiddlewareConfig{
		CookieName:     "animescope_session",
		SessionTTL:     24 * time.Hour,
		SlidingSession: true,
		CookiePath:     "/",
		CookieSecure:   true,
		CookieSameSite: http.SameSiteLaxMode,
	}
}

// SessionMiddleware resolves the caller from a session cookie or a bearer
// token.
type SessionMiddleware struct {
	store  SessionStore
	users  UserLoader
	jwt    *JWTManager
	config *SessionMiddlewareConfig
}

// NewSessionMiddleware creates the middleware. jwt may be nil to accept
// cookies only.
func NewSessionMiddleware(store SessionStore, users UserLoader, jwt *JWTManager, cfg *SessionMiddlewareConfig) *SessionMiddleware {
	if cfg == nil {
		cfg = DefaultSessionMiddlewareConfig()
	}
	if cfg.Unauthorized == nil {
		cfg.Unauthorized = func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "Unauthorized: authentication required", http.StatusUnauthorized)
		}
	}
	return &SessionMiddleware{store: store, users: users, jwt: jwt, config: cfg}
}

// Authenticate attaches the account to the request context when the
// request carries a valid session. Anonymous requests pass through.
func (m *SessionMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := m.extractSessionID(r)
		if sessionID == "" {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()

		sess, err := m.store.Get(ctx, sessionID)
		if err != nil {
			if !errors.Is(err, ErrSessionNotFound) && !errors.Is(err, ErrSessionExpired) {
				logging.Ctx(ctx).Error().Err(err).Msg("Session lookup error")
			}
			next.ServeHTTP(w, r)
			return
		}

		user, err := m.users.LoadUser(ctx, sess.UserID)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				_ = m.store.Delete(ctx, sessionID)
			} else {
				logging.Ctx(ctx).Error().Err(err).Int64("user_id", sess.UserID).Msg("Failed to load session user")
			}
			next.ServeHTTP(w, r)
			return
		}

		if m.config.SlidingSession {
			if err := m.store.Touch(ctx, sessionID, time.Now().Add(m.config.SessionTTL)); err != nil {
				logging.Ctx(ctx).Warn().Err(err).Msg("Failed to touch session")
			}
		}

		next.ServeHTTP(w, r.WithContext(ContextWithUser(ctx, user, sessionID)))
	})
}

// RequireAuth rejects anonymous requests. It must run after Authenticate.
func (m *SessionMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserFromContext(r.Context()) == nil {
			m.config.Unauthorized(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// extractSessionID reads a bearer token first, then the cookie.
func (m *SessionMiddleware) extractSessionID(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" && m.jwt != nil {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			claims, err := m.jwt.ValidateToken(strings.TrimSpace(token))
			if err != nil {
				logging.Ctx(r.Context()).Debug().Err(err).Msg("Rejected bearer token")
				return ""
			}
			return claims.ID
		}
	}
	if c, err := r.Cookie(m.config.CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return ""
}

// Login creates a session for u, replacing oldSessionID if given, and sets
// the cookie.
func (m *SessionMiddleware) Login(ctx context.Context, w http.ResponseWriter, u *models.User, oldSessionID string) (*Session, error) {
	if oldSessionID != "" {
		_ = m.store.Delete(ctx, oldSessionID)
	}
	sess := NewSession(u, m.config.SessionTTL)
	if err := m.store.Create(ctx, sess); err != nil {
		return nil, err
	}
	m.setCookie(w, sess.ID, int(m.config.SessionTTL.Seconds()))
	return sess, nil
}

// Logout deletes the session and clears the cookie.
func (m *SessionMiddleware) Logout(ctx context.Context, w http.ResponseWriter, sessionID string) error {
	if sessionID != "" {
		if err := m.store.Delete(ctx, sessionID); err != nil {
			return err
		}
	}
	m.setCookie(w, "", -1)
	return nil
}

// Token issues a bearer token for sess.
func (m *SessionMiddleware) Token(sess *Session, role string) (string, error) {
	if m.jwt == nil {
		return "", errors.New("bearer tokens are not enabled")
	}
	return m.jwt.GenerateToken(sess, role)
}

// Store returns the session backend.
func (m *SessionMiddleware) Store() SessionStore { return m.store }

func (m *SessionMiddleware) setCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.config.CookieName,
		Value:    value,
		Path:     m.config.CookiePath,
		MaxAge:   maxAge,
		Secure:   m.config.CookieSecure,
		HttpOnly: true,
		SameSite: m.config.CookieSameSite,
	})
}
