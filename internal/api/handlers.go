// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/animescope/internal/audit"
	"github.com/tomtom215/animescope/internal/auth"
	"github.com/tomtom215/animescope/internal/catalog"
	"github.com/tomtom215/animescope/internal/config"
	"github.com/tomtom215/animescope/internal/database"
	"github.com/tomtom215/animescope/internal/favorites"
	"github.com/tomtom215/animescope/internal/logging"
	"github.com/tomtom215/animescope/internal/middleware"
	"github.com/tomtom215/animescope/internal/models"
	ws "github.com/tomtom215/animescope/internal/websocket"
)

// UpstreamStatus reports the health of the catalog upstream.
type UpstreamStatus interface {
	BreakerState() string
}

// Dependencies are the services the handlers call. Warmer, Upstream and
// Hub are optional.
type Dependencies struct {
	DB       *database.DB
	Catalog  *catalog.Service
	Lists    *catalog.Registry
	Warmer   *catalog.CacheWarmer
	Upstream UpstreamStatus
	Hub      *ws.Hub
	Sessions *auth.SessionMiddleware
	Config   *config.Config
	Audit    *audit.Logger
}

// Handler contains dependencies for API handlers.
//
// Handler methods are split across files:
//   - handlers_auth.go: register, login, logout, current user
//   - handlers_favorites.go: the favorites collaborator
//   - handlers_catalog.go: catalog proxy and the anime cache lookup
//   - handlers_lists.go: server-side lists and their streams
//   - handlers_admin.go: account, cache and audit administration
//   - handlers_health.go: health probes
type Handler struct {
	db        *database.DB
	users     *database.UserStore
	favs      *database.FavoriteStore
	cache     *database.CacheStore
	catalog   *catalog.Service
	lists     *catalog.Registry
	warmer    *catalog.CacheWarmer
	upstream  UpstreamStatus
	wsHub     *ws.Hub
	sessions  *auth.SessionMiddleware
	config    *config.Config
	audit     *audit.Logger
	perfMon   *middleware.PerformanceMonitor
	startTime time.Time
}

// NewHandler creates the API handler. The performance monitor keeps the
// last 1000 requests.
func NewHandler(deps Dependencies) *Handler {
	h := &Handler{
		db:        deps.DB,
		catalog:   deps.Catalog,
		lists:     deps.Lists,
		warmer:    deps.Warmer,
		upstream:  deps.Upstream,
		wsHub:     deps.Hub,
		sessions:  deps.Sessions,
		config:    deps.Config,
		audit:     deps.Audit,
		perfMon:   middleware.NewPerformanceMonitor(1000),
		startTime: time.Now(),
	}
	if deps.DB != nil {
		h.users = deps.DB.Users()
		h.favs = deps.DB.Favorites()
		h.cache = deps.DB.Cache()
	}
	return h
}

// PerformanceMonitor returns the monitor fed by the router.
func (h *Handler) PerformanceMonitor() *middleware.PerformanceMonitor {
	return h.perfMon
}

// FavoritesCollaborator binds the favorites table to one account. When a
// warmer is given, each add queues a cache refresh for the title.
func FavoritesCollaborator(store *database.FavoriteStore, warmer *catalog.CacheWarmer) catalog.FavoritesFor {
	return func(userID int64) favorites.Collaborator {
		uf := store.ForUser(userID)
		if warmer != nil {
			uf.AfterAdd = warmer.AfterAdd
		}
		return uf
	}
}

// UserLoader adapts the user table to the session middleware.
func UserLoader(users *database.UserStore) auth.UserLoader {
	return auth.UserLoaderFunc(func(ctx context.Context, id int64) (*models.User, error) {
		u, err := users.Get(ctx, id)
		if errors.Is(err, database.ErrNotFound) {
			return nil, auth.ErrUserNotFound
		}
		return u, err
	})
}

// owner identifies the caller for list ownership. Anonymous callers are
// keyed by the address RealIP resolved.
func owner(r *http.Request) catalog.Owner {
	return catalog.Owner{
		SessionID: auth.SessionIDFromContext(r.Context()),
		Client:    audit.SourceFromRequest(r).IPAddress,
		User:      auth.UserFromContext(r.Context()),
	}
}

// getUpgrader creates a WebSocket upgrader with origin checking and a
// handshake timeout.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates WebSocket connection origins against the
// CORS list.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	// Browsers always send Origin. Accepting an empty one would bypass CORS.
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}

	if h.config == nil {
		return true
	}

	for _, allowedOrigin := range h.config.Security.CORSOrigins {
		if allowedOrigin == "*" || allowedOrigin == origin {
			return true
		}
	}

	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}
