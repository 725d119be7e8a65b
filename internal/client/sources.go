// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package client

import (
	"context"
	"net/url"
	"strconv"

	"github.com/tomtom215/animescope/internal/jikan"
	"github.com/tomtom215/animescope/internal/models"
	"github.com/tomtom215/animescope/internal/paginate"
)

func browseValues(q jikan.BrowseQuery) url.Values {
	v := url.Values{}
	if q.Query != "" {
		v.Set("q", q.Query)
	}
	if q.GenreID > 0 {
		v.Set("genre", strconv.Itoa(q.GenreID))
	}
	if q.Sort != "" {
		v.Set("sort", string(q.Sort))
	}
	return v
}

// pageSource serves one paged API collection to an engine.
func pageSource[T any](c *Client, path string, query url.Values) paginate.Source[T] {
	return paginate.SourceFunc[T](func(ctx context.Context, pageNum, limit int) (paginate.Page[T], error) {
		p, err := page[T](ctx, c, path, query, pageNum, limit)
		if err != nil {
			return paginate.Page[T]{}, err
		}
		return paginate.Page[T]{Items: p.Items, HasNext: p.HasNext}, nil
	})
}

// BrowseSource pages the catalog search.
func (c *Client) BrowseSource(q jikan.BrowseQuery) paginate.Source[models.CatalogItem] {
	return pageSource[models.CatalogItem](c, "/api/v1/catalog/anime", browseValues(q))
}

// FavoritesSource pages the caller's resolved favorites with the same
// filter and sort keys as browsing.
func (c *Client) FavoritesSource(q jikan.BrowseQuery) paginate.Source[models.CatalogItem] {
	return pageSource[models.CatalogItem](c, "/api/v1/favorites/anime", browseValues(q))
}

// CharactersSource pages the cast of one title.
func (c *Client) CharactersSource(id int) paginate.Source[models.Character] {
	return pageSource[models.Character](c, "/api/v1/catalog/anime/"+strconv.Itoa(id)+"/characters", nil)
}

// RecommendationsSource pages the recommendations for one title.
func (c *Client) RecommendationsSource(id int) paginate.Source[models.Recommendation] {
	return pageSource[models.Recommendation](c, "/api/v1/catalog/anime/"+strconv.Itoa(id)+"/recommendations", nil)
}
