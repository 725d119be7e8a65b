// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/animescope/internal/catalog"
	"github.com/tomtom215/animescope/internal/database"
	"github.com/tomtom215/animescope/internal/favorites"
	"github.com/tomtom215/animescope/internal/jikan"
	"github.com/tomtom215/animescope/internal/logging"
	"github.com/tomtom215/animescope/internal/middleware"
	"github.com/tomtom215/animescope/internal/models"
	"github.com/tomtom215/animescope/internal/validation"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 64 * 1024

// sanitizeLogValue removes control characters from strings to prevent log injection attacks.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			fmt.Fprintf(&result, "\\x%02x", r)
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// respondJSON sends a JSON response. API responses are per-user and never
// cached by intermediaries.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondData sends a success envelope.
func respondData(w http.ResponseWriter, status int, data interface{}) {
	respondJSON(w, status, &models.APIResponse{
		Success: true,
		Data:    data,
		Meta:    models.Meta{Timestamp: time.Now().UTC()},
	})
}

// respondPage sends a success envelope with paging metadata.
func respondPage(w http.ResponseWriter, data interface{}, total, limit, offset int) {
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Success: true,
		Data:    data,
		Meta:    models.Meta{Timestamp: time.Now().UTC(), Total: &total, Limit: limit, Offset: offset},
	})
}

// respondError sends an error envelope. err, when set, is logged and not
// sent to the client.
func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, err error) {
	if err != nil {
		ev := logging.Ctx(r.Context()).Warn()
		if status >= http.StatusInternalServerError {
			ev = logging.Ctx(r.Context()).Error()
		}
		ev.Str("code", code).Str("path", sanitizeLogValue(r.URL.Path)).Str("error", sanitizeLogValue(err.Error())).Msg("API error")
	}

	respondJSON(w, status, &models.APIResponse{
		Success: false,
		Error: &models.APIError{
			Code:      code,
			Message:   message,
			RequestID: middleware.GetRequestID(r.Context()),
		},
		Meta: models.Meta{Timestamp: time.Now().UTC()},
	})
}

// respondValidation sends a 400 with the validator's field details.
func respondValidation(w http.ResponseWriter, r *http.Request, apiErr *validation.APIError) {
	respondJSON(w, http.StatusBadRequest, &models.APIResponse{
		Success: false,
		Error: &models.APIError{
			Code:      apiErr.Code,
			Message:   apiErr.Message,
			Details:   apiErr.Details,
			RequestID: middleware.GetRequestID(r.Context()),
		},
		Meta: models.Meta{Timestamp: time.Now().UTC()},
	})
}

// respondServiceError maps a domain error onto a status and code:
// unauthenticated 401, not found 404, permanent upstream 502, transient
// upstream 503, invalid input 400, conflict 409.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, context.Canceled):
		// The client went away; nobody reads the response.
		return
	case errors.Is(err, favorites.ErrUnauthenticated):
		respondError(w, r, http.StatusUnauthorized, models.CodeUnauthorized, "Authentication required", nil)
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, database.ErrNotFound),
		errors.Is(err, catalog.ErrListNotFound), jikan.IsNotFound(err):
		respondError(w, r, http.StatusNotFound, models.CodeNotFound, "Not found", nil)
	case errors.Is(err, catalog.ErrInvalidID), errors.Is(err, favorites.ErrInvalidID),
		errors.Is(err, database.ErrInvalidAnimeID), errors.Is(err, catalog.ErrInvalidKind):
		respondError(w, r, http.StatusBadRequest, models.CodeValidation, err.Error(), nil)
	case errors.Is(err, database.ErrConflict), errors.Is(err, favorites.ErrToggleInProgress):
		respondError(w, r, http.StatusConflict, models.CodeConflict, err.Error(), nil)
	case errors.Is(err, jikan.ErrTransientUpstream):
		respondError(w, r, http.StatusServiceUnavailable, models.CodeUpstreamUnavailable,
			"The catalog service is temporarily unavailable", err)
	case errors.Is(err, jikan.ErrPermanentUpstream):
		respondError(w, r, http.StatusBadGateway, models.CodeUpstreamError,
			"The catalog service rejected the request", err)
	default:
		respondError(w, r, http.StatusInternalServerError, models.CodeInternal, "Internal server error", err)
	}
}

// normalizer is implemented by request bodies that clean their fields
// before validation.
type normalizer interface {
	normalize()
}

// decodeJSON reads a JSON body into v and validates it. It writes the
// error response itself and reports whether the handler may continue.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, r, http.StatusRequestEntityTooLarge, models.CodeValidation, "Request body too large", nil)
		return false
	}
	if len(body) == 0 {
		body = []byte("{}")
	}
	if err := json.Unmarshal(body, v); err != nil {
		respondError(w, r, http.StatusBadRequest, models.CodeValidation, "Request body must be valid JSON", nil)
		return false
	}
	if n, ok := v.(normalizer); ok {
		n.normalize()
	}
	if verr := validation.ValidateStruct(v); verr != nil {
		respondValidation(w, r, verr.ToAPIError())
		return false
	}
	return true
}

// pathID parses a positive integer URL parameter.
func pathID(r *http.Request, key string) (int, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, key))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// getIntParam extracts an integer query parameter with a default value.
func getIntParam(r *http.Request, key string, defaultValue int) int {
	return parseIntParam(r.URL.Query().Get(key), defaultValue)
}

func parseIntParam(value string, defaultValue int) int {
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
