// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package api

import (
	"net/http"
	"time"
)

// Version is reported by the health endpoint. It is set at build time.
var Version = "dev"

// HealthStatus is the body of GET /api/v1/health.
type HealthStatus struct {
	Status            string  `json:"status"`
	Version           string  `json:"version"`
	DatabaseConnected bool    `json:"database_connected"`
	UpstreamBreaker   string  `json:"upstream_breaker"`
	OpenLists         int     `json:"open_lists"`
	StreamClients     int     `json:"stream_clients"`
	Uptime            float64 `json:"uptime"`
}

func (h *Handler) dbConnected(r *http.Request) bool {
	return h.db != nil && h.db.Ping(r.Context()) == nil
}

// Health reports overall status. An open upstream breaker degrades the
// service without making it unready, since favorites and the cache still
// work.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:            "healthy",
		Version:           Version,
		DatabaseConnected: h.dbConnected(r),
		UpstreamBreaker:   "unknown",
		Uptime:            time.Since(h.startTime).Seconds(),
	}
	if h.upstream != nil {
		status.UpstreamBreaker = h.upstream.BreakerState()
	}
	if h.lists != nil {
		status.OpenLists = h.lists.Len()
	}
	if h.wsHub != nil {
		status.StreamClients = h.wsHub.ClientCount()
	}
	if !status.DatabaseConnected || status.UpstreamBreaker == "open" {
		status.Status = "degraded"
	}
	respondData(w, http.StatusOK, status)
}

// HealthLive returns 200 while the process is alive.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady returns 200 when the database answers and 503 otherwise.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ready := h.dbConnected(r)
	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	respondData(w, code, map[string]interface{}{
		"database_connected": ready,
		"ready_to_serve":     ready,
	})
}
