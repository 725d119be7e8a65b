// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package jikan

import (
	"net/url"
	"strconv"
	"strings"
)

// Endpoint identifies an upstream collection. Name is a low-cardinality
// label for metrics and logs; Path and Query build the request.
type Endpoint struct {
	Name  string
	Path  string
	Query url.Values
}

// String renders path?query for logs.
func (e Endpoint) String() string {
	if len(e.Query) == 0 {
		return e.Path
	}
	return e.Path + "?" + e.Query.Encode()
}

// Sort is a user-facing sort key.
type Sort string

const (
	SortPopular      Sort = "popular"
	SortLeastPopular Sort = "least_popular"
	SortAZ           Sort = "az"
	SortZA           Sort = "za"
	SortTopRated     Sort = "top_rated"
	SortWorstRated   Sort = "worst_rated"
	SortAiring       Sort = "airing"
	SortUpcoming     Sort = "upcoming"
)

// Sorts lists every accepted key in display order.
var Sorts = []Sort{
	SortPopular, SortLeastPopular, SortAZ, SortZA,
	SortTopRated, SortWorstRated, SortAiring, SortUpcoming,
}

type sortSpec struct {
	orderBy string
	dir     string
	status  string
}

var sortSpecs = map[Sort]sortSpec{
	SortPopular:      {orderBy: "members", dir: "desc"},
	SortLeastPopular: {orderBy: "members", dir: "asc"},
	SortAZ:           {orderBy: "title", dir: "asc"},
	SortZA:           {orderBy: "title", dir: "desc"},
	SortTopRated:     {orderBy: "score", dir: "desc"},
	SortWorstRated:   {orderBy: "score", dir: "asc"},
	SortAiring:       {orderBy: "members", dir: "desc", status: "airing"},
	SortUpcoming:     {orderBy: "members", dir: "desc", status: "upcoming"},
}

// ParseSort returns SortPopular for unknown or empty input.
func ParseSort(s string) Sort {
	v := Sort(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := sortSpecs[v]; ok {
		return v
	}
	return SortPopular
}

// MinQueryLength is the shortest search text sent upstream.
const MinQueryLength = 2

// BrowseQuery describes a catalog search.
type BrowseQuery struct {
	Query   string
	GenreID int
	Sort    Sort
}

// EffectiveQuery returns the trimmed search text, or "" when it is too short.
func (q BrowseQuery) EffectiveQuery() string {
	t := strings.TrimSpace(q.Query)
	if len([]rune(t)) < MinQueryLength {
		return ""
	}
	return t
}

// Endpoint builds the /anime search endpoint. Page and limit are added by
// FetchPage.
func (q BrowseQuery) Endpoint() Endpoint {
	v := url.Values{}
	if text := q.EffectiveQuery(); text != "" {
		v.Set("q", text)
	}
	if q.GenreID > 0 {
		v.Set("genres", strconv.Itoa(q.GenreID))
	}
	spec := sortSpecs[ParseSort(string(q.Sort))]
	if spec.status != "" {
		v.Set("status", spec.status)
	}
	v.Set("order_by", spec.orderBy)
	v.Set("sort", spec.dir)
	return Endpoint{Name: "anime_search", Path: "/anime", Query: v}
}

// RecommendationsEndpoint is the paged recommendation list for one title.
func RecommendationsEndpoint(id int) Endpoint {
	return Endpoint{Name: "anime_recommendations", Path: "/anime/" + strconv.Itoa(id) + "/recommendations"}
}
