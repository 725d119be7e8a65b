// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package jikan

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrTransientUpstream matches failures worth retrying: HTTP 429, 5xx,
	// transport errors and an open circuit breaker.
	ErrTransientUpstream = errors.New("transient upstream error")

	// ErrPermanentUpstream matches any other non-2xx answer.
	ErrPermanentUpstream = errors.New("permanent upstream error")
)

// UpstreamError is the only error type returned by Client. Use errors.Is
// with ErrTransientUpstream or ErrPermanentUpstream to classify it, and
// errors.Is with context.Canceled to detect cancellation.
type UpstreamError struct {
	Endpoint  string
	Status    int // 0 when no HTTP response was received
	Transient bool
	Attempts  int
	Err       error
}

func (e *UpstreamError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	msg := fmt.Sprintf("jikan %s: %s failure", e.Endpoint, kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Attempts > 1 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is lets errors.Is match the classification sentinels.
func (e *UpstreamError) Is(target error) bool {
	switch target {
	case ErrTransientUpstream:
		return e.Transient
	case ErrPermanentUpstream:
		return !e.Transient
	}
	return false
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is an upstream 404.
func IsNotFound(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.Status == http.StatusNotFound
}

// classifyStatus reports whether a non-2xx status should be retried.
func classifyStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}
