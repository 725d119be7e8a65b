// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package api

import (
	"net/http"

	"github.com/tomtom215/animescope/internal/auth"
	"github.com/tomtom215/animescope/internal/favorites"
	"github.com/tomtom215/animescope/internal/jikan"
	"github.com/tomtom215/animescope/internal/models"
	"github.com/tomtom215/animescope/internal/paginate"
)

// maxPageLimit is the largest page the upstream serves.
const maxPageLimit = 25

// browseQuery reads q, genre and sort.
func browseQuery(r *http.Request) jikan.BrowseQuery {
	q := r.URL.Query()
	return jikan.BrowseQuery{
		Query:   q.Get("q"),
		GenreID: max(getIntParam(r, "genre", 0), 0),
		Sort:    jikan.ParseSort(q.Get("sort")),
	}
}

// paging reads page (>= 1) and limit (1..25).
func paging(r *http.Request, defaultLimit int) (page, limit int) {
	page = max(getIntParam(r, "page", 1), 1)
	limit = getIntParam(r, "limit", defaultLimit)
	if limit < 1 || limit > maxPageLimit {
		limit = defaultLimit
	}
	return page, limit
}

// servePage fetches one page from src and writes it.
func servePage[T any](w http.ResponseWriter, r *http.Request, src paginate.Source[T], page, limit int) {
	p, err := src.FetchPage(r.Context(), page, limit)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	items := p.Items
	if items == nil {
		items = []T{}
	}
	respondData(w, http.StatusOK, models.CatalogPage[T]{Items: items, Page: page, HasNext: p.HasNext})
}

// BrowseCatalog returns one upstream page of the search.
//
// Query parameters: q (ignored under 2 characters), genre, sort, page, limit.
func (h *Handler) BrowseCatalog(w http.ResponseWriter, r *http.Request) {
	page, limit := paging(r, h.catalog.Config().PageSize)
	servePage(w, r, h.catalog.BrowseSource(browseQuery(r)), page, limit)
}

// Genres returns the genre list sorted by name.
func (h *Handler) Genres(w http.ResponseWriter, r *http.Request) {
	genres, err := h.catalog.Genres(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, genres)
}

// AnimeDetails returns the detail view, falling back to the local cache.
func (h *Handler) AnimeDetails(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, r, http.StatusBadRequest, models.CodeValidation, "id must be a positive integer", nil)
		return
	}
	d, err := h.catalog.Details(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, d)
}

// AnimeCharacters returns one chunk of the cast.
func (h *Handler) AnimeCharacters(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, r, http.StatusBadRequest, models.CodeValidation, "id must be a positive integer", nil)
		return
	}
	page, limit := paging(r, h.catalog.Config().DetailChunkSize)
	servePage(w, r, h.catalog.CharactersSource(id), page, limit)
}

// AnimeRecommendations returns one chunk of the recommendations.
func (h *Handler) AnimeRecommendations(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, r, http.StatusBadRequest, models.CodeValidation, "id must be a positive integer", nil)
		return
	}
	page, limit := paging(r, h.catalog.Config().DetailChunkSize)
	servePage(w, r, h.catalog.RecommendationsSource(id), page, limit)
}

// FavoritesView resolves the caller's favorites and serves them filtered,
// sorted and paged like the browse view.
func (h *Handler) FavoritesView(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	if u == nil {
		respondServiceError(w, r, favorites.ErrUnauthenticated)
		return
	}
	page, limit := paging(r, h.catalog.Config().PageSize)
	src := h.catalog.FavoritesSource(h.collaborator(u).ListFavoriteIDs, browseQuery(r))
	servePage(w, r, src, page, limit)
}

// AnimeCache returns the locally cached record of a title, or 404.
func (h *Handler) AnimeCache(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, r, http.StatusBadRequest, models.CodeValidation, "id must be a positive integer", nil)
		return
	}
	rec, err := h.cache.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, rec)
}
