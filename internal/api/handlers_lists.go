// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/animescope/internal/catalog"
	"github.com/tomtom215/animescope/internal/favorites"
	"github.com/tomtom215/animescope/internal/logging"
	"github.com/tomtom215/animescope/internal/paginate"
	ws "github.com/tomtom215/animescope/internal/websocket"
)

// ListStep is the outcome of a load or scroll on a server-side list.
type ListStep struct {
	Batch   []paginate.Annotated[any] `json:"batch"`
	Removed int                       `json:"removed"`
	State   paginate.State            `json:"state"`
	Skipped bool                      `json:"skipped"`
	Cursor  paginate.Cursor           `json:"cursor"`
	Offset  int                       `json:"offset"`
}

func newListStep(l catalog.List, res catalog.Batch) ListStep {
	snap := l.Snapshot()
	batch := res.Batch
	if batch == nil {
		batch = []paginate.Annotated[any]{}
	}
	return ListStep{
		Batch:   batch,
		Removed: res.Removed,
		State:   res.State,
		Skipped: res.Skipped,
		Cursor:  snap.Cursor,
		Offset:  snap.Offset,
	}
}

// listFromRequest resolves {id} for the caller and writes 404 otherwise.
func (h *Handler) listFromRequest(w http.ResponseWriter, r *http.Request) (catalog.List, bool) {
	l, err := h.lists.Get(owner(r), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return nil, false
	}
	return l, true
}

// CreateList opens a server-side list. Favorites lists need a login.
func (h *Handler) CreateList(w http.ResponseWriter, r *http.Request) {
	var spec catalog.ListSpec
	if !decodeJSON(w, r, &spec) {
		return
	}
	l, err := h.lists.Create(r.Context(), owner(r), spec)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusCreated, l.Snapshot())
}

// GetList returns the retained items and cursor of a list.
func (h *Handler) GetList(w http.ResponseWriter, r *http.Request) {
	l, ok := h.listFromRequest(w, r)
	if !ok {
		return
	}
	respondData(w, http.StatusOK, l.Snapshot())
}

// LoadNext fetches the next page of a list. A list that is loading or
// exhausted answers with skipped set.
func (h *Handler) LoadNext(w http.ResponseWriter, r *http.Request) {
	l, ok := h.listFromRequest(w, r)
	if !ok {
		return
	}
	res, err := l.LoadNext(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, newListStep(l, res))
}

// UpdateViewport records the visible range and loads when it nears the end.
func (h *Handler) UpdateViewport(w http.ResponseWriter, r *http.Request) {
	l, ok := h.listFromRequest(w, r)
	if !ok {
		return
	}
	var vp paginate.Viewport
	if !decodeJSON(w, r, &vp) {
		return
	}
	res, err := l.Scroll(r.Context(), vp)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, newListStep(l, res))
}

// DeleteList closes a list. Its streams are ended by the registry's close
// hook.
func (h *Handler) DeleteList(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.lists.Delete(owner(r), id); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"deleted": id})
}

// StreamList upgrades to a websocket that pushes the list's batches and
// prunes and accepts viewport, load_more and toggle messages.
func (h *Handler) StreamList(w http.ResponseWriter, r *http.Request) {
	l, ok := h.listFromRequest(w, r)
	if !ok {
		return
	}
	if h.wsHub == nil {
		respondError(w, r, http.StatusServiceUnavailable, "UNAVAILABLE", "Streaming is disabled", nil)
		return
	}

	var overlay *favorites.Overlay
	if o := owner(r); o.User != nil {
		var err error
		overlay, err = h.lists.Overlay(r.Context(), o.User)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		logging.Ctx(r.Context()).Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	ws.NewClient(r.Context(), h.wsHub, conn, l, overlay).Start()
}
