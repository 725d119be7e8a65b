// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package models

import (
	"testing"
)

func TestParseStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Status
	}{
		{"Currently Airing", StatusAiring},
		{"Finished Airing", StatusFinished},
		{"Not yet aired", StatusUpcoming},
		{"airing", StatusAiring},
		{"finished", StatusFinished},
		{"upcoming", StatusUpcoming},
		{"", StatusUnknown},
		{"On Hiatus", StatusUnknown},
	}
	for _, tt := range tests {
		if got := ParseStatus(tt.in); got != tt.want {
			t.Errorf("ParseStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCacheRecordRoundTrip(t *testing.T) {
	t.Parallel()

	img := "https://cdn.example/1.jpg"
	score := 8.7
	eps := 26
	item := CatalogItem{
		ID:       1,
		Title:    "Cowboy Bebop",
		ImageURL: &img,
		Score:    &score,
		Episodes: &eps,
		Status:   StatusFinished,
		Genres:   []Genre{{ID: 1, Name: "Action"}},
	}

	rec := CacheRecordFromItem(&item)
	back := rec.Item()

	if back.ID != 1 || back.Title != "Cowboy Bebop" || *back.Score != 8.7 || *back.Episodes != 26 {
		t.Errorf("unexpected item from cache: %+v", back)
	}
	if !back.HasGenre(1) {
		t.Errorf("genres lost in cache round trip: %v", back.Genres)
	}
}

func TestCacheRecordItem_EmptyStatus(t *testing.T) {
	t.Parallel()

	rec := CacheRecord{ID: 7, Title: "x"}
	if got := rec.Item().Status; got != StatusUnknown {
		t.Errorf("Status = %q, want unknown", got)
	}
}

func TestHasGenre(t *testing.T) {
	t.Parallel()

	item := CatalogItem{Genres: []Genre{{ID: 1}, {ID: 27}}}
	if !item.HasGenre(27) {
		t.Error("expected genre 27")
	}
	if item.HasGenre(4) {
		t.Error("did not expect genre 4")
	}
}

func TestUserRoles(t *testing.T) {
	t.Parallel()

	if !ValidRole("admin") || !ValidRole("user") || ValidRole("viewer") {
		t.Error("ValidRole mismatch")
	}
	var nilUser *User
	if nilUser.IsAdmin() {
		t.Error("nil user must not be admin")
	}
	if !(&User{Role: RoleAdmin}).IsAdmin() {
		t.Error("admin role not recognized")
	}
}
