// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/animescope/internal/config"
	"github.com/tomtom215/animescope/internal/jikan"
	"github.com/tomtom215/animescope/internal/metrics"
	"github.com/tomtom215/animescope/internal/models"
)

var errUpstreamDown = &jikan.UpstreamError{Endpoint: "anime", Status: 503, Transient: true}

// fakeUpstream serves titles from maps and records calls.
type fakeUpstream struct {
	mu          sync.Mutex
	items       map[int]*models.CatalogItem
	chars       []models.Character
	genres      []models.Genre
	recPages    [][]models.Recommendation
	failIDs     map[int]bool
	animeCalls  []int
	genreCalls  int
	searchPages map[int][]models.CatalogItem
	searchLast  int
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		items:       make(map[int]*models.CatalogItem),
		failIDs:     make(map[int]bool),
		searchPages: make(map[int][]models.CatalogItem),
	}
}

func (f *fakeUpstream) add(items ...models.CatalogItem) {
	for i := range items {
		it := items[i]
		f.items[it.ID] = &it
	}
}

func (f *fakeUpstream) FetchPage(_ context.Context, ep jikan.Endpoint, page, _ int) (*jikan.RawPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var raws []json.RawMessage
	hasNext := false
	switch ep.Name {
	case "anime_recommendations":
		if page <= len(f.recPages) {
			for _, r := range f.recPages[page-1] {
				raws = append(raws, mustJSON(map[string]any{
					"entry": map[string]any{"mal_id": r.ID, "title": r.Title},
					"votes": r.Votes,
				}))
			}
		}
		hasNext = page < len(f.recPages)
	default:
		for _, it := range f.searchPages[page] {
			raws = append(raws, mustJSON(map[string]any{"mal_id": it.ID, "title": it.Title}))
		}
		hasNext = page < f.searchLast
	}
	return &jikan.RawPage{Items: raws, HasNext: hasNext}, nil
}

func (f *fakeUpstream) Genres(context.Context) ([]models.Genre, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.genreCalls++
	return f.genres, nil
}

func (f *fakeUpstream) Anime(_ context.Context, id int) (*models.CatalogItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.animeCalls = append(f.animeCalls, id)
	if f.failIDs[id] {
		return nil, errUpstreamDown
	}
	it, ok := f.items[id]
	if !ok {
		return nil, jikan.ErrNoData
	}
	return it, nil
}

func (f *fakeUpstream) AnimeDetails(_ context.Context, id int) (*models.Details, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failIDs[id] {
		return nil, errUpstreamDown
	}
	it, ok := f.items[id]
	if !ok {
		return nil, &jikan.UpstreamError{Endpoint: "anime_full", Status: 404}
	}
	return &models.Details{CatalogItem: *it}, nil
}

func (f *fakeUpstream) Characters(context.Context, int) ([]models.Character, error) {
	return f.chars, nil
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// memCache is an in-memory CacheReader and CacheWriter.
type memCache struct {
	mu   sync.Mutex
	recs map[int]models.CacheRecord
}

func newMemCache(recs ...models.CacheRecord) *memCache {
	c := &memCache{recs: make(map[int]models.CacheRecord)}
	for _, r := range recs {
		c.recs[r.ID] = r
	}
	return c
}

func (c *memCache) Get(_ context.Context, id int) (*models.CacheRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.recs[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return &r, nil
}

func (c *memCache) Upsert(_ context.Context, rec *models.CacheRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recs[rec.ID] = *rec
	return nil
}

func testConfig() config.CatalogConfig {
	return config.CatalogConfig{
		PageSize:              25,
		DetailChunkSize:       5,
		MaxRetained:           500,
		ScrollThreshold:       5,
		FavoritesResolveDelay: 150 * time.Millisecond,
		ListIdleTTL:           15 * time.Minute,
		MaxListsPerSession:    3,
	}
}

func ptr[T any](v T) *T { return &v }

func TestDetails_Upstream(t *testing.T) {
	up := newFakeUpstream()
	up.add(models.CatalogItem{ID: 1, Title: "Cowboy Bebop"})
	svc := NewService(up, newMemCache(), testConfig())

	d, err := svc.Details(context.Background(), 1)
	if err != nil {
		t.Fatalf("Details: %v", err)
	}
	if d.Source != models.SourceUpstream || d.Title != "Cowboy Bebop" {
		t.Errorf("details = %+v", d)
	}
}

func TestDetails_CacheFallback(t *testing.T) {
	up := newFakeUpstream()
	up.failIDs[21] = true
	cache := newMemCache(models.CacheRecord{ID: 21, Title: "One Piece", Score: ptr(8.7), Status: models.StatusAiring})
	svc := NewService(up, cache, testConfig())

	before := testutil.ToFloat64(metrics.CacheFallbacks.WithLabelValues("details", "hit"))
	d, err := svc.Details(context.Background(), 21)
	if err != nil {
		t.Fatalf("Details: %v", err)
	}
	if d.Source != models.SourceCache || d.Title != "One Piece" || d.Status != models.StatusAiring {
		t.Errorf("details = %+v", d)
	}
	if d.Studios != nil || d.TrailerURL != nil {
		t.Error("cached details should not carry full-record fields")
	}
	if got := testutil.ToFloat64(metrics.CacheFallbacks.WithLabelValues("details", "hit")) - before; got != 1 {
		t.Errorf("fallback hits = %v, want 1", got)
	}
}

func TestDetails_NotFound(t *testing.T) {
	tests := []struct {
		name  string
		fail  bool
		cache CacheReader
	}{
		{"upstream 404 and cache miss", false, newMemCache()},
		{"upstream down and cache miss", true, newMemCache()},
		{"upstream down and no cache", true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := newFakeUpstream()
			up.failIDs[99] = tt.fail
			svc := NewService(up, tt.cache, testConfig())
			if _, err := svc.Details(context.Background(), 99); !errors.Is(err, ErrNotFound) {
				t.Errorf("err = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestDetails_InvalidID(t *testing.T) {
	svc := NewService(newFakeUpstream(), nil, testConfig())
	for _, id := range []int{0, -4} {
		if _, err := svc.Details(context.Background(), id); !errors.Is(err, ErrInvalidID) {
			t.Errorf("Details(%d) err = %v, want ErrInvalidID", id, err)
		}
	}
}

func TestGenres_Reused(t *testing.T) {
	up := newFakeUpstream()
	up.genres = []models.Genre{{ID: 1, Name: "Action"}}
	svc := NewService(up, nil, testConfig())

	for i := 0; i < 3; i++ {
		g, err := svc.Genres(context.Background())
		if err != nil || len(g) != 1 {
			t.Fatalf("Genres = %v, %v", g, err)
		}
	}
	if up.genreCalls != 1 {
		t.Errorf("upstream calls = %d, want 1", up.genreCalls)
	}
}

func TestResolveFavorites(t *testing.T) {
	up := newFakeUpstream()
	up.add(models.CatalogItem{ID: 1, Title: "A"}, models.CatalogItem{ID: 3, Title: "C"})
	up.failIDs[2] = true
	cache := newMemCache(models.CacheRecord{ID: 2, Title: "B (cached)"})
	svc := NewService(up, cache, testConfig())

	var pauses []time.Duration
	svc.sleep = func(_ context.Context, d time.Duration) error {
		pauses = append(pauses, d)
		return nil
	}

	items, err := svc.ResolveFavorites(context.Background(), []int{3, 2, 404, 1})
	if err != nil {
		t.Fatalf("ResolveFavorites: %v", err)
	}
	var titles []string
	for _, it := range items {
		titles = append(titles, it.Title)
	}
	if fmt.Sprint(titles) != "[C B (cached) A]" {
		t.Errorf("titles = %v, want [C B (cached) A]", titles)
	}
	if len(pauses) != 3 || pauses[0] != 150*time.Millisecond {
		t.Errorf("pauses = %v, want three of 150ms", pauses)
	}
}

func TestResolveFavorites_Canceled(t *testing.T) {
	up := newFakeUpstream()
	up.add(models.CatalogItem{ID: 1}, models.CatalogItem{ID: 2})
	svc := NewService(up, nil, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.ResolveFavorites(ctx, []int{1, 2}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestRecommendationsSource_Chunks(t *testing.T) {
	up := newFakeUpstream()
	up.recPages = [][]models.Recommendation{
		{{ID: 10, Title: "a"}, {ID: 11, Title: "b"}, {ID: 12, Title: "c"}},
		{{ID: 13, Title: "d"}, {ID: 14, Title: "e"}, {ID: 15, Title: "f"}},
	}
	svc := NewService(up, nil, testConfig())
	src := svc.RecommendationsSource(1)

	p1, err := src.FetchPage(context.Background(), 1, 5)
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if len(p1.Items) != 5 || !p1.HasNext {
		t.Fatalf("page 1 = %d items hasNext=%v, want 5 and true", len(p1.Items), p1.HasNext)
	}
	p2, err := src.FetchPage(context.Background(), 2, 5)
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if len(p2.Items) != 1 || p2.HasNext || p2.Items[0].ID != 15 {
		t.Errorf("page 2 = %+v", p2)
	}
}

func TestCharactersSource_FetchesOnce(t *testing.T) {
	up := newFakeUpstream()
	for i := 1; i <= 7; i++ {
		up.chars = append(up.chars, models.Character{ID: i, Name: fmt.Sprintf("c%d", i)})
	}
	src := NewService(up, nil, testConfig()).CharactersSource(1)

	p1, _ := src.FetchPage(context.Background(), 1, 5)
	p2, _ := src.FetchPage(context.Background(), 2, 5)
	if len(p1.Items) != 5 || !p1.HasNext || len(p2.Items) != 2 || p2.HasNext {
		t.Errorf("pages = %d/%v then %d/%v", len(p1.Items), p1.HasNext, len(p2.Items), p2.HasNext)
	}
}

func TestCacheWarmer(t *testing.T) {
	up := newFakeUpstream()
	up.add(models.CatalogItem{ID: 5423, Title: "Warmed", Genres: []models.Genre{{ID: 4, Name: "Comedy"}}})
	up.failIDs[7] = true
	cache := newMemCache()
	w := NewCacheWarmer(up, cache, 1)

	w.Warm(context.Background(), 5423)
	w.Warm(context.Background(), 7)

	rec, err := cache.Get(context.Background(), 5423)
	if err != nil || rec.Title != "Warmed" || len(rec.Genres) != 1 {
		t.Fatalf("cached = %+v, %v", rec, err)
	}
	if _, err := cache.Get(context.Background(), 7); err == nil {
		t.Error("failed lookup should not be cached")
	}

	if !w.Enqueue(1) {
		t.Fatal("first enqueue should fit")
	}
	if w.Enqueue(2) {
		t.Error("enqueue into a full queue should be dropped")
	}
	if w.Enqueue(0) {
		t.Error("invalid id should be rejected")
	}
}
