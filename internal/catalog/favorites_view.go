// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package catalog

import (
	"cmp"
	"slices"
	"strings"

	"github.com/tomtom215/animescope/internal/jikan"
	"github.com/tomtom215/animescope/internal/models"
)

// FilterSort applies a browse query to an in-memory list the way the
// upstream applies it to the catalog: title substring, genre id, then the
// sort key. The airing and upcoming keys also filter on status. The input
// is not modified.
func FilterSort(items []models.CatalogItem, q jikan.BrowseQuery) []models.CatalogItem {
	out := make([]models.CatalogItem, 0, len(items))
	text := strings.ToLower(q.EffectiveQuery())
	sortKey := jikan.ParseSort(string(q.Sort))

	for i := range items {
		it := &items[i]
		if text != "" && !strings.Contains(strings.ToLower(it.Title), text) {
			continue
		}
		if q.GenreID > 0 && !it.HasGenre(q.GenreID) {
			continue
		}
		switch sortKey {
		case jikan.SortAiring:
			if it.Status != models.StatusAiring {
				continue
			}
		case jikan.SortUpcoming:
			if it.Status != models.StatusUpcoming {
				continue
			}
		}
		out = append(out, *it)
	}

	var less func(a, b models.CatalogItem) int
	switch sortKey {
	case jikan.SortLeastPopular:
		less = func(a, b models.CatalogItem) int { return cmp.Compare(deref(a.Members), deref(b.Members)) }
	case jikan.SortAZ:
		less = func(a, b models.CatalogItem) int { return compareTitle(a, b) }
	case jikan.SortZA:
		less = func(a, b models.CatalogItem) int { return compareTitle(b, a) }
	case jikan.SortTopRated:
		less = func(a, b models.CatalogItem) int { return cmp.Compare(derefF(b.Score), derefF(a.Score)) }
	case jikan.SortWorstRated:
		less = func(a, b models.CatalogItem) int { return cmp.Compare(derefF(a.Score), derefF(b.Score)) }
	default: // popular, airing, upcoming
		less = func(a, b models.CatalogItem) int { return cmp.Compare(deref(b.Members), deref(a.Members)) }
	}
	slices.SortStableFunc(out, less)
	return out
}

func compareTitle(a, b models.CatalogItem) int {
	return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func derefF(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
