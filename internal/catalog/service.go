// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

// Package catalog combines the upstream client, the local cache and the
// pagination engine into the lists and views the product offers.
package catalog

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tomtom215/animescope/internal/config"
	"github.com/tomtom215/animescope/internal/jikan"
	"github.com/tomtom215/animescope/internal/logging"
	"github.com/tomtom215/animescope/internal/metrics"
	"github.com/tomtom215/animescope/internal/models"
	"github.com/tomtom215/animescope/internal/paginate"
)

var (
	// ErrNotFound is returned when neither the upstream nor the cache has
	// the title.
	ErrNotFound = errors.New("anime not found")

	// ErrInvalidID is returned for ids that are not positive.
	ErrInvalidID = errors.New("anime id must be a positive integer")
)

// recommendationPause spaces the upstream pages pulled to fill one chunk.
const recommendationPause = 200 * time.Millisecond

// genresTTL bounds how long the genre list is reused.
const genresTTL = time.Hour

// Upstream is the part of jikan.Client the catalog uses.
type Upstream interface {
	jikan.Fetcher
	Genres(ctx context.Context) ([]models.Genre, error)
	Anime(ctx context.Context, id int) (*models.CatalogItem, error)
	AnimeDetails(ctx context.Context, id int) (*models.Details, error)
	Characters(ctx context.Context, id int) ([]models.Character, error)
}

// CacheReader looks up the local copy of a title. Any error is a miss.
type CacheReader interface {
	Get(ctx context.Context, id int) (*models.CacheRecord, error)
}

// CacheWriter stores the local copy of a title.
type CacheWriter interface {
	Upsert(ctx context.Context, rec *models.CacheRecord) error
}

// Service serves catalog views. The cache is optional.
type Service struct {
	upstream Upstream
	cache    CacheReader
	cfg      config.CatalogConfig
	sleep    func(ctx context.Context, d time.Duration) error

	genresMu  sync.Mutex
	genres    []models.Genre
	genresExp time.Time
}

// NewService creates a Service. cache may be nil.
func NewService(up Upstream, cache CacheReader, cfg config.CatalogConfig) *Service {
	if cfg.PageSize <= 0 {
		cfg.PageSize = paginate.DefaultChunkSize
	}
	if cfg.DetailChunkSize <= 0 {
		cfg.DetailChunkSize = 5
	}
	return &Service{upstream: up, cache: cache, cfg: cfg, sleep: paginate.SleepContext}
}

// Config returns the effective list settings.
func (s *Service) Config() config.CatalogConfig { return s.cfg }

// BrowseSource pages through the upstream search.
func (s *Service) BrowseSource(q jikan.BrowseQuery) paginate.Source[models.CatalogItem] {
	return jikan.SearchSource(s.upstream, q)
}

// Genres returns the genre list sorted by name. A successful answer is
// reused for an hour.
func (s *Service) Genres(ctx context.Context) ([]models.Genre, error) {
	s.genresMu.Lock()
	defer s.genresMu.Unlock()

	if s.genres != nil && time.Now().Before(s.genresExp) {
		return s.genres, nil
	}
	g, err := s.upstream.Genres(ctx)
	if err != nil {
		return nil, err
	}
	if len(g) > 0 {
		s.genres, s.genresExp = g, time.Now().Add(genresTTL)
	}
	return g, nil
}

// Details returns the full record of a title, or its cached copy when the
// upstream fails or has no record.
func (s *Service) Details(ctx context.Context, id int) (*models.Details, error) {
	if id <= 0 {
		return nil, ErrInvalidID
	}

	d, err := s.upstream.AnimeDetails(ctx, id)
	if err == nil {
		d.Source = models.SourceUpstream
		return d, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	rec := s.cached(ctx, id, "details")
	if rec == nil {
		logging.Ctx(ctx).Debug().Err(err).Int("anime_id", id).Msg("Details missing upstream and in cache")
		return nil, ErrNotFound
	}
	logging.Ctx(ctx).Info().Err(err).Int("anime_id", id).Msg("Serving details from cache")
	return &models.Details{CatalogItem: rec.Item(), Source: models.SourceCache}, nil
}

// Item returns the list shape of a title with the same cache fallback as
// Details.
func (s *Service) Item(ctx context.Context, id int) (*models.CatalogItem, error) {
	if id <= 0 {
		return nil, ErrInvalidID
	}
	item, err := s.upstream.Anime(ctx, id)
	if err == nil {
		return item, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	rec := s.cached(ctx, id, "item")
	if rec == nil {
		return nil, ErrNotFound
	}
	out := rec.Item()
	return &out, nil
}

func (s *Service) cached(ctx context.Context, id int, view string) *models.CacheRecord {
	if s.cache == nil {
		return nil
	}
	rec, err := s.cache.Get(ctx, id)
	hit := err == nil && rec != nil
	metrics.RecordCacheFallback(view, hit)
	if !hit {
		return nil
	}
	return rec
}

// CharactersSource serves a title's cast in local chunks. The cast is
// fetched once, on the first page.
func (s *Service) CharactersSource(id int) paginate.Source[models.Character] {
	return paginate.NewLazySliceSource(func(ctx context.Context) ([]models.Character, error) {
		return s.upstream.Characters(ctx, id)
	})
}

// RecommendationsSource serves a title's recommendations in fixed chunks
// pulled from the paged upstream list.
func (s *Service) RecommendationsSource(id int) paginate.Source[models.Recommendation] {
	return paginate.NewRechunk[models.Recommendation](jikan.RecommendationSource(s.upstream, id), recommendationPause)
}

// ResolveFavorites looks up each id in order, falling back to the cache,
// with a pause between upstream calls. Ids found nowhere are skipped.
func (s *Service) ResolveFavorites(ctx context.Context, ids []int) ([]models.CatalogItem, error) {
	out := make([]models.CatalogItem, 0, len(ids))
	for i, id := range ids {
		if i > 0 {
			if err := s.sleep(ctx, s.cfg.FavoritesResolveDelay); err != nil {
				return nil, err
			}
		}
		item, err := s.upstream.Anime(ctx, id)
		if err != nil || item == nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			rec := s.cached(ctx, id, "favorites")
			if rec == nil {
				logging.Ctx(ctx).Debug().Err(err).Int("anime_id", id).Msg("Favorite could not be resolved")
				continue
			}
			cached := rec.Item()
			item = &cached
		}
		out = append(out, *item)
	}
	return out, nil
}

// FavoritesSource resolves the ids returned by load, filters and sorts
// them like the browse view, then serves them in pages.
func (s *Service) FavoritesSource(load func(ctx context.Context) ([]int, error), q jikan.BrowseQuery) paginate.Source[models.CatalogItem] {
	return paginate.NewLazySliceSource(func(ctx context.Context) ([]models.CatalogItem, error) {
		ids, err := load(ctx)
		if err != nil {
			return nil, err
		}
		items, err := s.ResolveFavorites(ctx, ids)
		if err != nil {
			return nil, err
		}
		return FilterSort(items, q), nil
	})
}
