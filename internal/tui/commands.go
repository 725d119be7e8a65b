// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tomtom215/animescope/internal/favorites"
	"github.com/tomtom215/animescope/internal/models"
	"github.com/tomtom215/animescope/internal/paginate"
)

const (
	loadTimeout   = 30 * time.Second
	toggleTimeout = 15 * time.Second
)

// DetailsFunc fetches the detail view of one title.
type DetailsFunc func(ctx context.Context, id int) (*models.Details, error)

// LoadNextCmd fetches the next page.
func LoadNextCmd(e *paginate.Engine[models.CatalogItem]) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		res, err := e.LoadNext(ctx)
		return LoadedMsg{Result: res, Err: err}
	}
}

// ScrollCmd reports the viewport, loading the next page when it is near
// the end of the list.
func ScrollCmd(e *paginate.Engine[models.CatalogItem], vp paginate.Viewport) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		res, err := e.Scroll(ctx, vp)
		return LoadedMsg{Result: res, Err: err}
	}
}

// ToggleCmd flips the favorite flag of one title.
func ToggleCmd(o *favorites.Overlay, item models.CatalogItem) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), toggleTimeout)
		defer cancel()
		fav, err := o.Toggle(ctx, item.ID)
		return ToggledMsg{AnimeID: item.ID, Title: item.Title, Favorite: fav, Err: err}
	}
}

// DetailsCmd fetches the detail view of one title.
func DetailsCmd(fetch DetailsFunc, id int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		d, err := fetch(ctx, id)
		return DetailsMsg{Details: d, Err: err}
	}
}
