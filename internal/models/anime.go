// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

// Package models holds the data shapes shared by the catalog, storage and API layers.
package models

import (
	"strings"
	"time"
)

// Status is the normalized airing status of a title.
type Status string

const (
	StatusAiring   Status = "airing"
	StatusFinished Status = "finished"
	StatusUpcoming Status = "upcoming"
	StatusUnknown  Status = "unknown"
)

// ParseStatus maps the upstream wording ("Currently Airing", "Finished Airing",
// "Not yet aired") and our own values onto a Status.
func ParseStatus(s string) Status {
	v := strings.ToLower(strings.TrimSpace(s))
	switch {
	case v == "":
		return StatusUnknown
	case v == string(StatusAiring), strings.Contains(v, "currently"):
		return StatusAiring
	case v == string(StatusFinished), strings.Contains(v, "finished"):
		return StatusFinished
	case v == string(StatusUpcoming), strings.Contains(v, "not yet"):
		return StatusUpcoming
	default:
		return StatusUnknown
	}
}

// Genre is a genre, theme or demographic tag.
type Genre struct {
	ID   int    `json:"mal_id"`
	Name string `json:"name"`
}

// CatalogItem is one title as rendered in lists. Optional fields are nil when
// the upstream omits them. Values are not modified after normalization.
type CatalogItem struct {
	ID       int      `json:"mal_id"`
	Title    string   `json:"title"`
	ImageURL *string  `json:"image_url"`
	Score    *float64 `json:"score"`
	Episodes *int     `json:"episodes"`
	Year     *int     `json:"year"`
	Status   Status   `json:"status"`
	Synopsis *string  `json:"synopsis"`
	Members  *int     `json:"members,omitempty"`

	// Genres merges genres, themes, demographics and explicit genres.
	Genres []Genre `json:"genres,omitempty"`
}

// HasGenre reports whether any tag carries the given id.
func (c *CatalogItem) HasGenre(id int) bool {
	for _, g := range c.Genres {
		if g.ID == id {
			return true
		}
	}
	return false
}

// CacheRecord is the locally stored copy of a CatalogItem. It is written
// when a title becomes someone's favorite and read when the upstream fails.
type CacheRecord struct {
	ID        int       `json:"mal_id"`
	Title     string    `json:"title"`
	ImageURL  *string   `json:"image_url"`
	Score     *float64  `json:"score"`
	Episodes  *int      `json:"episodes"`
	Year      *int      `json:"year"`
	Status    Status    `json:"status"`
	Synopsis  *string   `json:"synopsis"`
	Members   *int      `json:"members,omitempty"`
	Genres    []Genre   `json:"genres"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CacheRecordFromItem copies the cacheable fields of an item.
func CacheRecordFromItem(item *CatalogItem) CacheRecord {
	return CacheRecord{
		ID:       item.ID,
		Title:    item.Title,
		ImageURL: item.ImageURL,
		Score:    item.Score,
		Episodes: item.Episodes,
		Year:     item.Year,
		Status:   item.Status,
		Synopsis: item.Synopsis,
		Members:  item.Members,
		Genres:   item.Genres,
	}
}

// Item converts a cache record back into a list item.
func (r *CacheRecord) Item() CatalogItem {
	status := r.Status
	if status == "" {
		status = StatusUnknown
	}
	return CatalogItem{
		ID:       r.ID,
		Title:    r.Title,
		ImageURL: r.ImageURL,
		Score:    r.Score,
		Episodes: r.Episodes,
		Year:     r.Year,
		Status:   status,
		Synopsis: r.Synopsis,
		Members:  r.Members,
		Genres:   r.Genres,
	}
}

// Character is one entry of a title's cast list.
type Character struct {
	ID       int     `json:"mal_id"`
	Name     string  `json:"name"`
	Role     string  `json:"role"`
	ImageURL *string `json:"image_url"`
}

// Recommendation is a related title suggested by the upstream community.
type Recommendation struct {
	ID       int     `json:"mal_id"`
	Title    string  `json:"title"`
	ImageURL *string `json:"image_url"`
	Votes    int     `json:"votes"`
}

// DetailSource tells whether details came from the upstream or the cache.
type DetailSource string

const (
	SourceUpstream DetailSource = "upstream"
	SourceCache    DetailSource = "cache"
)

// Details is the detail view of a single title. When Source is SourceCache
// only the CacheRecord fields are populated.
type Details struct {
	CatalogItem
	Source     DetailSource `json:"source"`
	TitleJA    *string      `json:"title_japanese,omitempty"`
	Type       *string      `json:"type,omitempty"`
	Rank       *int         `json:"rank,omitempty"`
	Studios    []string     `json:"studios,omitempty"`
	TrailerURL *string      `json:"trailer_url,omitempty"`
}
