// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/animescope/internal/auth"
	"github.com/tomtom215/animescope/internal/authz"
	"github.com/tomtom215/animescope/internal/middleware"
	"github.com/tomtom215/animescope/internal/models"
)

// Router wires the handlers to their routes and middleware.
type Router struct {
	handler       *Handler
	sessions      *auth.SessionMiddleware
	authz         *authz.Middleware
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a Router. authzMW may be nil, which leaves route
// access to the handlers' own checks.
func NewRouter(handler *Handler, sessions *auth.SessionMiddleware, authzMW *authz.Middleware, chiMW *ChiMiddleware) *Router {
	if chiMW == nil {
		chiMW = NewChiMiddleware(nil)
	}
	return &Router{handler: handler, sessions: sessions, authz: authzMW, chiMiddleware: chiMW}
}

// AuthzDenied writes authorization failures in the API envelope.
func AuthzDenied(w http.ResponseWriter, r *http.Request, status int) {
	if status == http.StatusUnauthorized {
		respondError(w, r, status, models.CodeUnauthorized, "Authentication required", nil)
		return
	}
	respondError(w, r, status, models.CodeForbidden, "Access denied: insufficient permissions", nil)
}

func (router *Router) authorize() func(http.Handler) http.Handler {
	if router.authz == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return router.authz.AuthorizeRequest
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()
	h := router.handler

	// Applied to every route, in order.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // global so OPTIONS preflight is answered
	r.Use(middleware.PrometheusMetrics)
	r.Use(h.PerformanceMonitor().Middleware)
	r.Use(router.sessions.Authenticate)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, models.CodeNotFound, "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Use(APISecurityHeaders())
		r.Get("/", h.Health)
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})

	r.Group(func(r chi.Router) {
		r.Use(APISecurityHeaders())
		r.Use(middleware.Compression)
		r.Use(router.authorize())

		r.Route("/api/v1/auth", func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimitAuth())
			r.With(router.chiMiddleware.RateLimitLogin()).Post("/login", h.Login)
			r.Post("/register", h.Register)
			r.Post("/logout", h.Logout)
			r.Get("/user", h.CurrentUser)
		})

		r.Route("/api/v1/catalog", func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimitCatalog())
			r.Get("/genres", h.Genres)
			r.Get("/anime", h.BrowseCatalog)
			r.Get("/anime/{id}", h.AnimeDetails)
			r.Get("/anime/{id}/characters", h.AnimeCharacters)
			r.Get("/anime/{id}/recommendations", h.AnimeRecommendations)
		})

		r.With(router.chiMiddleware.RateLimitCatalog()).Get("/api/v1/anime-cache/{id}", h.AnimeCache)

		r.Route("/api/v1/favorites", func(r chi.Router) {
			r.With(router.chiMiddleware.RateLimitCatalog()).Get("/", h.ListFavorites)
			r.With(router.chiMiddleware.RateLimitCatalog()).Get("/anime", h.FavoritesView)
			r.With(router.chiMiddleware.RateLimitWrite()).Post("/", h.AddFavorite)
			r.With(router.chiMiddleware.RateLimitWrite()).Delete("/{anime_id}", h.RemoveFavorite)
		})

		r.Route("/api/v1/lists", func(r chi.Router) {
			r.With(router.chiMiddleware.RateLimitWrite()).Post("/", h.CreateList)
			r.Group(func(r chi.Router) {
				r.Use(router.chiMiddleware.RateLimitCatalog())
				r.Get("/{id}", h.GetList)
				r.Post("/{id}/next", h.LoadNext)
				r.Post("/{id}/viewport", h.UpdateViewport)
				r.Delete("/{id}", h.DeleteList)
			})
			r.With(router.chiMiddleware.RateLimitWebSocket()).Get("/{id}/stream", h.StreamList)
		})

		r.Route("/api/v1/admin", func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimit())
			r.Get("/users", h.AdminListUsers)
			r.Put("/users/{id}/role", h.AdminSetRole)
			r.Delete("/users/{id}", h.AdminDeleteUser)
			r.Get("/anime-cache", h.AdminListCache)
			r.Delete("/anime-cache/{id}", h.AdminDeleteCache)
			r.Post("/anime-cache/{id}/refresh", h.AdminRefreshCache)
			r.Get("/audit", h.AdminListAudit)
			r.Get("/performance", h.AdminPerformance)
		})
	})

	return r
}
