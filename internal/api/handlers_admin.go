// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package api

import (
	"net/http"

	"github.com/tomtom215/animescope/internal/audit"
	"github.com/tomtom215/animescope/internal/auth"
	"github.com/tomtom215/animescope/internal/logging"
	"github.com/tomtom215/animescope/internal/models"
)

// RoleRequest is the body of PUT /api/v1/admin/users/{id}/role.
type RoleRequest struct {
	Role string `json:"role" validate:"required,role"`
}

// adminTarget parses {id} and refuses the caller's own account.
func adminTarget(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, r, http.StatusBadRequest, models.CodeValidation, "id must be a positive integer", nil)
		return 0, false
	}
	if me := auth.UserFromContext(r.Context()); me != nil && me.ID == int64(id) {
		respondError(w, r, http.StatusConflict, models.CodeConflict, "Admins cannot change or delete their own account", nil)
		return 0, false
	}
	return int64(id), true
}

// AdminListUsers returns every account.
func (h *Handler) AdminListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondPage(w, users, len(users), 0, 0)
}

// AdminSetRole changes an account's role. It applies from the account's
// next request, since the account is reloaded per request.
func (h *Handler) AdminSetRole(w http.ResponseWriter, r *http.Request) {
	id, ok := adminTarget(w, r)
	if !ok {
		return
	}
	var req RoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	before, err := h.users.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if err := h.users.UpdateRole(r.Context(), id, req.Role); err != nil {
		respondServiceError(w, r, err)
		return
	}
	u, err := h.users.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	logging.Ctx(r.Context()).Info().Int64("target_user_id", id).Str("role", req.Role).Msg("Role changed")
	h.audit.LogRoleChanged(r, u, before.Role)
	respondData(w, http.StatusOK, u)
}

// AdminDeleteUser removes an account with its favorites, sessions and lists.
func (h *Handler) AdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := adminTarget(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	if err := h.users.Delete(ctx, id); err != nil {
		respondServiceError(w, r, err)
		return
	}
	n, err := h.sessions.Store().DeleteByUserID(ctx, id)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Int64("target_user_id", id).Msg("Failed to revoke sessions")
	} else if n > 0 {
		logging.Ctx(ctx).Debug().Int("sessions", n).Msg("Sessions revoked")
	}
	h.lists.DropUser(id)
	h.audit.LogUserDeleted(r, id, n)

	logging.Ctx(ctx).Info().Int64("target_user_id", id).Msg("Account deleted")
	respondData(w, http.StatusOK, map[string]int64{"deleted": id})
}

// AdminListCache returns cached records, newest first.
//
// Query parameters: limit (default 100, max 500), offset.
func (h *Handler) AdminListCache(w http.ResponseWriter, r *http.Request) {
	limit := getIntParam(r, "limit", 100)
	if limit < 1 || limit > 500 {
		limit = 100
	}
	offset := max(getIntParam(r, "offset", 0), 0)
	recs, total, err := h.cache.List(r.Context(), limit, offset)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondPage(w, recs, total, len(recs), offset)
}

// AdminDeleteCache removes one cached record.
func (h *Handler) AdminDeleteCache(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, r, http.StatusBadRequest, models.CodeValidation, "id must be a positive integer", nil)
		return
	}
	if err := h.cache.Delete(r.Context(), id); err != nil {
		respondServiceError(w, r, err)
		return
	}
	h.audit.LogCacheAction(r, audit.EventTypeCacheEvicted, id)
	respondData(w, http.StatusOK, map[string]int{"deleted": id})
}

// AdminRefreshCache queues a refresh of one cached record from the upstream.
func (h *Handler) AdminRefreshCache(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, r, http.StatusBadRequest, models.CodeValidation, "id must be a positive integer", nil)
		return
	}
	if h.warmer == nil || !h.warmer.Enqueue(id) {
		respondError(w, r, http.StatusServiceUnavailable, "UNAVAILABLE", "Cache refresh queue is unavailable", nil)
		return
	}
	h.audit.LogCacheAction(r, audit.EventTypeCacheRefreshed, id)
	respondData(w, http.StatusAccepted, map[string]int{"queued": id})
}

// AdminListAudit returns audit events, newest first.
//
// Query parameters: type (repeatable), outcome, actor_id, target_id,
// limit (default 100, max 1000), offset.
func (h *Handler) AdminListAudit(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		respondError(w, r, http.StatusServiceUnavailable, "UNAVAILABLE", "Audit logging is disabled", nil)
		return
	}
	q := r.URL.Query()
	filter := audit.QueryFilter{
		Outcome:  audit.Outcome(q.Get("outcome")),
		ActorID:  q.Get("actor_id"),
		TargetID: q.Get("target_id"),
		Limit:    getIntParam(r, "limit", audit.DefaultQueryLimit),
		Offset:   max(getIntParam(r, "offset", 0), 0),
	}
	if filter.Limit < 1 || filter.Limit > audit.MaxQueryLimit {
		filter.Limit = audit.DefaultQueryLimit
	}
	for _, t := range q["type"] {
		filter.Types = append(filter.Types, audit.EventType(t))
	}
	if filter.Outcome != "" && filter.Outcome != audit.OutcomeSuccess && filter.Outcome != audit.OutcomeFailure {
		respondError(w, r, http.StatusBadRequest, models.CodeValidation, "outcome must be success or failure", nil)
		return
	}

	events, total, err := h.audit.Query(r.Context(), filter)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondPage(w, events, int(total), len(events), filter.Offset)
}

// AdminPerformance returns per-route latency statistics.
func (h *Handler) AdminPerformance(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, map[string]interface{}{
		"endpoints": h.perfMon.GetStats(),
		"recent":    h.perfMon.GetRecentMetrics(20),
	})
}
