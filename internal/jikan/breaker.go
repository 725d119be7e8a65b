// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package jikan

import (
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/animescope/internal/logging"
	"github.com/tomtom215/animescope/internal/metrics"
)

// BreakerSettings tunes the upstream circuit breaker.
type BreakerSettings struct {
	// MaxFailures consecutive transient failures open the circuit.
	MaxFailures uint32
	// Timeout is how long the circuit stays open before probing.
	Timeout time.Duration
	// Interval resets the closed-state counters.
	Interval time.Duration
}

// CircuitBreaker stops calling the upstream after repeated transient
// failures so that an outage costs one fast error instead of a full retry
// cycle per request. Permanent failures such as 404 do not count.
type CircuitBreaker struct {
	cb   *gobreaker.CircuitBreaker[[]byte]
	name string
}

// NewCircuitBreaker creates a named breaker.
func NewCircuitBreaker(name string, s BreakerSettings) *CircuitBreaker {
	if s.MaxFailures == 0 {
		s.MaxFailures = 5
	}
	if s.Timeout <= 0 {
		s.Timeout = 30 * time.Second
	}

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			trip := counts.ConsecutiveFailures >= s.MaxFailures
			if trip {
				log := logging.WithComponent("jikan")
				log.Warn().Str("breaker", name).Uint32("consecutive_failures", counts.ConsecutiveFailures).
					Msg("Opening upstream circuit")
			}
			return trip
		},
		IsSuccessful: func(err error) bool {
			var abort *callerAbort
			return err == nil || errors.Is(err, ErrPermanentUpstream) || errors.As(err, &abort)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log := logging.WithComponent("jikan")
			log.Info().Str("breaker", name).Str("from", stateToString(from)).Str("to", stateToString(to)).
				Msg("Circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, stateToString(from), stateToString(to)).Inc()
		},
	})

	return &CircuitBreaker{cb: cb, name: name}
}

// callerAbort marks a failure caused by the caller's context ending. It
// says nothing about upstream health and is not counted by the breaker.
type callerAbort struct{ err error }

func (e *callerAbort) Error() string { return e.err.Error() }
func (e *callerAbort) Unwrap() error { return e.err }

// Execute runs fn unless the circuit is open.
func (b *CircuitBreaker) Execute(fn func() ([]byte, error)) ([]byte, error) {
	body, err := b.cb.Execute(fn)
	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
	}
	return body, err
}

// State returns closed, half-open or open.
func (b *CircuitBreaker) State() string {
	return stateToString(b.cb.State())
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
