// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package jikan

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/animescope/internal/models"
)

// ErrInvalidItem is returned by normalizers for records without a usable id.
var ErrInvalidItem = errors.New("upstream item has no mal_id")

type rawImages struct {
	JPG struct {
		ImageURL      *string `json:"image_url"`
		LargeImageURL *string `json:"large_image_url"`
	} `json:"jpg"`
}

type rawGenre struct {
	MalID int    `json:"mal_id"`
	Name  string `json:"name"`
}

type rawAnime struct {
	MalID         int        `json:"mal_id"`
	Title         string     `json:"title"`
	TitleEnglish  *string    `json:"title_english"`
	TitleJapanese *string    `json:"title_japanese"`
	Images        rawImages  `json:"images"`
	Type          *string    `json:"type"`
	Score         *float64   `json:"score"`
	Episodes      *int       `json:"episodes"`
	Year          *int       `json:"year"`
	Status        string     `json:"status"`
	Synopsis      *string    `json:"synopsis"`
	Members       *int       `json:"members"`
	Rank          *int       `json:"rank"`
	Genres        []rawGenre `json:"genres"`
	Themes        []rawGenre `json:"themes"`
	Demographics  []rawGenre `json:"demographics"`
	Explicit      []rawGenre `json:"explicit_genres"`
	Studios       []rawGenre `json:"studios"`
	Aired         struct {
		Prop struct {
			From struct {
				Year *int `json:"year"`
			} `json:"from"`
		} `json:"prop"`
	} `json:"aired"`
	Trailer struct {
		URL *string `json:"url"`
	} `json:"trailer"`
}

func (r *rawAnime) item() models.CatalogItem {
	title := strings.TrimSpace(r.Title)
	if title == "" && r.TitleEnglish != nil {
		title = *r.TitleEnglish
	}

	year := r.Year
	if year == nil || *year == 0 {
		year = r.Aired.Prop.From.Year
	}

	tags := make([]models.Genre, 0, len(r.Genres)+len(r.Themes)+len(r.Demographics)+len(r.Explicit))
	for _, group := range [][]rawGenre{r.Genres, r.Themes, r.Demographics, r.Explicit} {
		for _, g := range group {
			tags = append(tags, models.Genre{ID: g.MalID, Name: g.Name})
		}
	}

	return models.CatalogItem{
		ID:       r.MalID,
		Title:    title,
		ImageURL: nonEmpty(r.Images.JPG.ImageURL),
		Score:    r.Score,
		Episodes: r.Episodes,
		Year:     year,
		Status:   models.ParseStatus(r.Status),
		Synopsis: nonEmpty(r.Synopsis),
		Members:  r.Members,
		Genres:   tags,
	}
}

// NormalizeAnime converts an upstream anime record into a CatalogItem.
func NormalizeAnime(raw json.RawMessage) (models.CatalogItem, error) {
	var r rawAnime
	if err := json.Unmarshal(raw, &r); err != nil {
		return models.CatalogItem{}, fmt.Errorf("decode anime: %w", err)
	}
	if r.MalID <= 0 {
		return models.CatalogItem{}, ErrInvalidItem
	}
	return r.item(), nil
}

// NormalizeDetails converts a /anime/{id}/full record.
func NormalizeDetails(raw json.RawMessage) (models.Details, error) {
	var r rawAnime
	if err := json.Unmarshal(raw, &r); err != nil {
		return models.Details{}, fmt.Errorf("decode anime details: %w", err)
	}
	if r.MalID <= 0 {
		return models.Details{}, ErrInvalidItem
	}

	d := models.Details{
		CatalogItem: r.item(),
		Source:      models.SourceUpstream,
		TitleJA:     nonEmpty(r.TitleJapanese),
		Type:        nonEmpty(r.Type),
		Rank:        r.Rank,
		TrailerURL:  nonEmpty(r.Trailer.URL),
	}
	if large := nonEmpty(r.Images.JPG.LargeImageURL); large != nil {
		d.ImageURL = large
	}
	// Details show only genres proper; themes and demographics stay in the list filter.
	d.Genres = d.Genres[:len(r.Genres)]
	for _, s := range r.Studios {
		d.Studios = append(d.Studios, s.Name)
	}
	return d, nil
}

// NormalizeGenre converts a /genres/anime record.
func NormalizeGenre(raw json.RawMessage) (models.Genre, error) {
	var g rawGenre
	if err := json.Unmarshal(raw, &g); err != nil {
		return models.Genre{}, fmt.Errorf("decode genre: %w", err)
	}
	if g.MalID <= 0 {
		return models.Genre{}, ErrInvalidItem
	}
	return models.Genre{ID: g.MalID, Name: g.Name}, nil
}

type rawCharacter struct {
	Character struct {
		MalID  int       `json:"mal_id"`
		Name   string    `json:"name"`
		Images rawImages `json:"images"`
	} `json:"character"`
	Role string `json:"role"`
}

// NormalizeCharacter converts an /anime/{id}/characters record.
func NormalizeCharacter(raw json.RawMessage) (models.Character, error) {
	var r rawCharacter
	if err := json.Unmarshal(raw, &r); err != nil {
		return models.Character{}, fmt.Errorf("decode character: %w", err)
	}
	if r.Character.MalID <= 0 {
		return models.Character{}, ErrInvalidItem
	}
	return models.Character{
		ID:       r.Character.MalID,
		Name:     r.Character.Name,
		Role:     r.Role,
		ImageURL: nonEmpty(r.Character.Images.JPG.ImageURL),
	}, nil
}

type rawRecEntry struct {
	MalID  int       `json:"mal_id"`
	Title  string    `json:"title"`
	Images rawImages `json:"images"`
}

type rawRecommendation struct {
	Entry json.RawMessage `json:"entry"`
	Votes int             `json:"votes"`
}

// NormalizeRecommendation converts an /anime/{id}/recommendations record.
// The entry field is an object on this endpoint and an array on the global
// recommendations feed; for arrays the first element is used.
func NormalizeRecommendation(raw json.RawMessage) (models.Recommendation, error) {
	var r rawRecommendation
	if err := json.Unmarshal(raw, &r); err != nil {
		return models.Recommendation{}, fmt.Errorf("decode recommendation: %w", err)
	}

	var entry rawRecEntry
	trimmed := strings.TrimSpace(string(r.Entry))
	switch {
	case strings.HasPrefix(trimmed, "["):
		var list []rawRecEntry
		if err := json.Unmarshal(r.Entry, &list); err != nil {
			return models.Recommendation{}, fmt.Errorf("decode recommendation entry: %w", err)
		}
		if len(list) == 0 {
			return models.Recommendation{}, ErrInvalidItem
		}
		entry = list[0]
	case strings.HasPrefix(trimmed, "{"):
		if err := json.Unmarshal(r.Entry, &entry); err != nil {
			return models.Recommendation{}, fmt.Errorf("decode recommendation entry: %w", err)
		}
	default:
		return models.Recommendation{}, ErrInvalidItem
	}

	if entry.MalID <= 0 {
		return models.Recommendation{}, ErrInvalidItem
	}
	return models.Recommendation{
		ID:       entry.MalID,
		Title:    entry.Title,
		ImageURL: nonEmpty(entry.Images.JPG.ImageURL),
		Votes:    r.Votes,
	}, nil
}

// NormalizeAll applies fn to every raw record and drops the ones it rejects.
func NormalizeAll[T any](raws []json.RawMessage, fn func(json.RawMessage) (T, error)) []T {
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		v, err := fn(raw)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}
