// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package jikan

import (
	"errors"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/animescope/internal/models"
)

func TestNormalizeAnime(t *testing.T) {
	raw := json.RawMessage(`{
		"mal_id": 1, "title": "Cowboy Bebop",
		"images": {"jpg": {"image_url": "small.jpg", "large_image_url": "large.jpg"}},
		"score": 8.75, "episodes": 26, "year": null, "status": "Finished Airing",
		"synopsis": "", "members": 1800000,
		"aired": {"prop": {"from": {"year": 1998}}},
		"genres": [{"mal_id": 1, "name": "Action"}],
		"themes": [{"mal_id": 50, "name": "Adult Cast"}]
	}`)

	item, err := NormalizeAnime(raw)
	if err != nil {
		t.Fatal(err)
	}
	if item.ID != 1 || item.Title != "Cowboy Bebop" {
		t.Errorf("identity = %d %q", item.ID, item.Title)
	}
	if item.ImageURL == nil || *item.ImageURL != "small.jpg" {
		t.Errorf("image = %v, want small.jpg", item.ImageURL)
	}
	if item.Year == nil || *item.Year != 1998 {
		t.Errorf("year = %v, want aired year 1998", item.Year)
	}
	if item.Status != models.StatusFinished {
		t.Errorf("status = %q", item.Status)
	}
	if item.Synopsis != nil {
		t.Errorf("empty synopsis should be nil, got %q", *item.Synopsis)
	}
	if len(item.Genres) != 2 || !item.HasGenre(50) {
		t.Errorf("genres = %+v, want genres and themes", item.Genres)
	}
}

func TestNormalizeAnime_Rejects(t *testing.T) {
	for name, raw := range map[string]string{
		"no id":    `{"title": "x"}`,
		"zero id":  `{"mal_id": 0}`,
		"not json": `[`,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := NormalizeAnime(json.RawMessage(raw)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNormalizeDetails(t *testing.T) {
	raw := json.RawMessage(`{
		"mal_id": 5, "title": "Trigun", "title_japanese": "トライガン", "type": "TV", "rank": 300,
		"year": 1998,
		"images": {"jpg": {"image_url": "s.jpg", "large_image_url": "l.jpg"}},
		"genres": [{"mal_id": 1, "name": "Action"}],
		"themes": [{"mal_id": 50, "name": "Adult Cast"}],
		"studios": [{"mal_id": 14, "name": "Madhouse"}],
		"trailer": {"url": null}
	}`)

	d, err := NormalizeDetails(raw)
	if err != nil {
		t.Fatal(err)
	}
	if d.Source != models.SourceUpstream {
		t.Errorf("source = %q", d.Source)
	}
	if d.ImageURL == nil || *d.ImageURL != "l.jpg" {
		t.Errorf("image = %v, want large", d.ImageURL)
	}
	if len(d.Genres) != 1 || d.Genres[0].Name != "Action" {
		t.Errorf("genres = %+v, want only genres proper", d.Genres)
	}
	if len(d.Studios) != 1 || d.Studios[0] != "Madhouse" {
		t.Errorf("studios = %v", d.Studios)
	}
	if d.TrailerURL != nil {
		t.Error("null trailer should stay nil")
	}
	if d.TitleJA == nil || d.Type == nil || *d.Type != "TV" || d.Rank == nil || *d.Rank != 300 {
		t.Errorf("extra fields = %+v", d)
	}
}

func TestNormalizeRecommendation(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantID  int
		wantErr bool
	}{
		{"object entry", `{"entry":{"mal_id":7,"title":"Seven"},"votes":12}`, 7, false},
		{"array entry", `{"entry":[{"mal_id":8,"title":"Eight"},{"mal_id":9}],"votes":2}`, 8, false},
		{"empty array", `{"entry":[],"votes":2}`, 0, true},
		{"entry without id", `{"entry":{"title":"x"}}`, 0, true},
		{"missing entry", `{"votes":1}`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NormalizeRecommendation(json.RawMessage(tt.raw))
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %+v", r)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if r.ID != tt.wantID {
				t.Errorf("id = %d, want %d", r.ID, tt.wantID)
			}
		})
	}
}

func TestNormalizeAll_DropsRejected(t *testing.T) {
	raws := []json.RawMessage{
		json.RawMessage(`{"mal_id":1,"name":"Action"}`),
		json.RawMessage(`{"name":"broken"}`),
		json.RawMessage(`{"mal_id":2,"name":"Comedy"}`),
	}
	got := NormalizeAll(raws, NormalizeGenre)
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 2 {
		t.Errorf("got %+v", got)
	}
	if _, err := NormalizeGenre(raws[1]); !errors.Is(err, ErrInvalidItem) {
		t.Errorf("err = %v, want ErrInvalidItem", err)
	}
}
