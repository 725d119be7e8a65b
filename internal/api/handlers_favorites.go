// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package api

import (
	"net/http"

	"github.com/tomtom215/animescope/internal/auth"
	"github.com/tomtom215/animescope/internal/favorites"
	"github.com/tomtom215/animescope/internal/metrics"
	"github.com/tomtom215/animescope/internal/models"
)

// collaborator returns the favorites store of u, with cache warming on add.
func (h *Handler) collaborator(u *models.User) favorites.Collaborator {
	return FavoritesCollaborator(h.favs, h.warmer)(u.ID)
}

// ListFavorites returns the caller's favorite ids, newest first.
func (h *Handler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	if u == nil {
		respondServiceError(w, r, favorites.ErrUnauthenticated)
		return
	}
	ids, err := h.collaborator(u).ListFavoriteIDs(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if ids == nil {
		ids = []int{}
	}
	respondData(w, http.StatusOK, ids)
}

// AddFavorite marks a title. Adding an existing favorite succeeds.
func (h *Handler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	if u == nil {
		metrics.RecordFavoriteToggle(true, "unauthenticated")
		respondServiceError(w, r, favorites.ErrUnauthenticated)
		return
	}
	var req models.FavoriteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.collaborator(u).AddFavorite(r.Context(), req.AnimeID); err != nil {
		metrics.RecordFavoriteToggle(true, "error")
		respondServiceError(w, r, err)
		return
	}
	metrics.RecordFavoriteToggle(true, "ok")
	h.lists.NotifyFavorite(u.ID, req.AnimeID, true)
	respondData(w, http.StatusCreated, models.FavoriteState{AnimeID: req.AnimeID, Favorite: true})
}

// RemoveFavorite unmarks a title. Removing a missing favorite succeeds.
func (h *Handler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	if u == nil {
		metrics.RecordFavoriteToggle(false, "unauthenticated")
		respondServiceError(w, r, favorites.ErrUnauthenticated)
		return
	}
	id, ok := pathID(r, "anime_id")
	if !ok {
		respondError(w, r, http.StatusBadRequest, models.CodeValidation, "anime_id must be a positive integer", nil)
		return
	}
	if err := h.collaborator(u).RemoveFavorite(r.Context(), id); err != nil {
		metrics.RecordFavoriteToggle(false, "error")
		respondServiceError(w, r, err)
		return
	}
	metrics.RecordFavoriteToggle(false, "ok")
	h.lists.NotifyFavorite(u.ID, id, false)
	respondData(w, http.StatusOK, models.FavoriteState{AnimeID: id, Favorite: false})
}
