// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package authz

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DecisionsTotal counts authorization decisions by role, action and outcome.
	DecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "animescope_authz_decisions_total",
			Help: "Total number of authorization decisions",
		},
		[]string{"role", "action", "decision"},
	)

	// CacheLookups counts decision cache hits and misses.
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "animescope_authz_cache_lookups_total",
			Help: "Authorization decision cache lookups",
		},
		[]string{"result"},
	)
)

// RecordDecision counts one decision.
func RecordDecision(role, action string, allowed, cacheHit bool) {
	d := "deny"
	if allowed {
		d = "allow"
	}
	DecisionsTotal.WithLabelValues(role, action, d).Inc()

	hit := "miss"
	if cacheHit {
		hit = "hit"
	}
	CacheLookups.WithLabelValues(hit).Inc()
}
