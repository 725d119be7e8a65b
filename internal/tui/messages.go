// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package tui

import (
	"github.com/tomtom215/animescope/internal/models"
	"github.com/tomtom215/animescope/internal/paginate"
)

// LoadedMsg reports a finished LoadNext or Scroll.
type LoadedMsg struct {
	Result paginate.Result[models.CatalogItem]
	Err    error
}

// ToggledMsg reports a finished favorite toggle.
type ToggledMsg struct {
	AnimeID  int
	Title    string
	Favorite bool
	Err      error
}

// DetailsMsg carries the detail view of the selected title.
type DetailsMsg struct {
	Details *models.Details
	Err     error
}
