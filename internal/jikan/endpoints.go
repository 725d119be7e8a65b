// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package jikan

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/animescope/internal/models"
	"github.com/tomtom215/animescope/internal/paginate"
)

// ErrNoData is returned by single-record lookups when the upstream answered
// 2xx without a usable record.
var ErrNoData = errors.New("upstream returned no data")

// Genres returns every anime genre, theme, demographic and explicit genre,
// sorted by name.
func (c *Client) Genres(ctx context.Context) ([]models.Genre, error) {
	raws, err := c.getList(ctx, "genres", "/genres/anime")
	if err != nil {
		return nil, err
	}
	genres := NormalizeAll(raws, NormalizeGenre)
	sort.SliceStable(genres, func(i, j int) bool {
		return strings.ToLower(genres[i].Name) < strings.ToLower(genres[j].Name)
	})
	return genres, nil
}

// Anime returns the list shape of one title.
func (c *Client) Anime(ctx context.Context, id int) (*models.CatalogItem, error) {
	raw, err := c.getData(ctx, "anime", "/anime/"+strconv.Itoa(id))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, ErrNoData
	}
	item, err := NormalizeAnime(raw)
	if err != nil {
		return nil, ErrNoData
	}
	return &item, nil
}

// AnimeDetails returns the full record of one title.
func (c *Client) AnimeDetails(ctx context.Context, id int) (*models.Details, error) {
	raw, err := c.getData(ctx, "anime_full", "/anime/"+strconv.Itoa(id)+"/full")
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, ErrNoData
	}
	d, err := NormalizeDetails(raw)
	if err != nil {
		return nil, ErrNoData
	}
	return &d, nil
}

// Characters returns the full cast list of one title. The upstream does not
// page this endpoint.
func (c *Client) Characters(ctx context.Context, id int) ([]models.Character, error) {
	raws, err := c.getList(ctx, "anime_characters", "/anime/"+strconv.Itoa(id)+"/characters")
	if err != nil {
		return nil, err
	}
	return NormalizeAll(raws, NormalizeCharacter), nil
}

func (c *Client) getList(ctx context.Context, name, path string) ([]json.RawMessage, error) {
	raw, err := c.getData(ctx, name, path)
	if err != nil || raw == nil {
		return nil, err
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, nil
	}
	return list, nil
}

// Fetcher is the part of Client a Source needs.
type Fetcher interface {
	FetchPage(ctx context.Context, ep Endpoint, page, limit int) (*RawPage, error)
}

// Source adapts one upstream collection to the pagination engine.
// Records the normalizer rejects are dropped from the page.
type Source[T any] struct {
	fetcher   Fetcher
	endpoint  Endpoint
	normalize func(json.RawMessage) (T, error)
	sendLimit bool
}

// NewSource binds a collection endpoint to a normalizer.
func NewSource[T any](f Fetcher, ep Endpoint, normalize func(json.RawMessage) (T, error)) *Source[T] {
	return &Source[T]{fetcher: f, endpoint: ep, normalize: normalize, sendLimit: true}
}

// SearchSource pages through /anime with the given filters.
func SearchSource(f Fetcher, q BrowseQuery) *Source[models.CatalogItem] {
	return NewSource(f, q.Endpoint(), NormalizeAnime)
}

// RecommendationSource pages through a title's recommendations. That
// endpoint ignores limit, so none is sent.
func RecommendationSource(f Fetcher, id int) *Source[models.Recommendation] {
	s := NewSource(f, RecommendationsEndpoint(id), NormalizeRecommendation)
	s.sendLimit = false
	return s
}

// Endpoint returns the bound collection.
func (s *Source[T]) Endpoint() Endpoint { return s.endpoint }

// FetchPage implements paginate.Source.
func (s *Source[T]) FetchPage(ctx context.Context, page, limit int) (paginate.Page[T], error) {
	if !s.sendLimit {
		limit = 0
	}
	raw, err := s.fetcher.FetchPage(ctx, s.endpoint, page, limit)
	if err != nil {
		return paginate.Page[T]{}, err
	}
	return paginate.Page[T]{
		Items:   NormalizeAll(raw.Items, s.normalize),
		HasNext: raw.HasNext,
	}, nil
}
