// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

// Package jikan is the upstream metadata client for the Jikan v4 API.
//
// Every request goes through one retry loop driven by a RetryPolicy value:
// HTTP 429, 5xx and transport failures are retried after Backoff(attempt),
// any other non-2xx answer fails at once. A 2xx answer whose body cannot be
// parsed is treated as an empty last page. Optional collaborators are a
// client-side rate limiter and a circuit breaker around the whole fetch.
package jikan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/animescope/internal/config"
	"github.com/tomtom215/animescope/internal/logging"
	"github.com/tomtom215/animescope/internal/metrics"
	"github.com/tomtom215/animescope/internal/paginate"
)

const (
	// DefaultBaseURL is the public Jikan v4 endpoint.
	DefaultBaseURL = "https://api.jikan.moe/v4"

	maxBodySize      = 8 << 20
	maxErrorBodySize = 4 << 10
	userAgent        = "animescope/1.0 (+https://github.com/tomtom215/animescope)"
)

// RawPage is one page of an upstream collection before normalization.
type RawPage struct {
	Items   []json.RawMessage
	HasNext bool
}

// Options configures a Client. Zero values select defaults.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client

	// ListRetry applies to paged collections, DetailRetry to single records.
	ListRetry   RetryPolicy
	DetailRetry RetryPolicy

	Limiter *rate.Limiter
	Breaker *CircuitBreaker

	// Sleep replaces the backoff wait. Tests use it to record delays.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Client talks to the Jikan API. It keeps no per-request state and is safe
// for concurrent use.
type Client struct {
	baseURL     string
	http        *http.Client
	listRetry   RetryPolicy
	detailRetry RetryPolicy
	limiter     *rate.Limiter
	breaker     *CircuitBreaker
	sleep       func(ctx context.Context, d time.Duration) error
}

// New builds a Client from opts.
func New(opts Options) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		http:        opts.HTTPClient,
		listRetry:   opts.ListRetry,
		detailRetry: opts.DetailRetry,
		limiter:     opts.Limiter,
		breaker:     opts.Breaker,
		sleep:       opts.Sleep,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 15 * time.Second}
	}
	if c.listRetry.MaxAttempts == 0 {
		c.listRetry = DefaultRetryPolicy()
	}
	if c.detailRetry.MaxAttempts == 0 {
		c.detailRetry = c.listRetry
	}
	if c.sleep == nil {
		c.sleep = paginate.SleepContext
	}
	return c
}

// NewFromConfig builds a production client with throttling and a breaker.
func NewFromConfig(cfg *config.JikanConfig) *Client {
	opts := Options{
		BaseURL:     cfg.BaseURL,
		HTTPClient:  &http.Client{Timeout: cfg.Timeout},
		ListRetry:   RetryPolicy{MaxAttempts: cfg.MaxAttempts, Backoff: LinearBackoff(cfg.BackoffBase)},
		DetailRetry: RetryPolicy{MaxAttempts: cfg.MaxAttempts, Backoff: LinearBackoff(cfg.DetailsBackoffBase)},
	}
	if cfg.RequestsPerSecond > 0 {
		opts.Limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
	}
	if cfg.BreakerEnabled {
		opts.Breaker = NewCircuitBreaker("jikan-api", BreakerSettings{
			MaxFailures: cfg.BreakerMaxFailures,
			Timeout:     cfg.BreakerTimeout,
			Interval:    cfg.BreakerInterval,
		})
	}
	return New(opts)
}

// BreakerState returns the circuit breaker state, or "disabled".
func (c *Client) BreakerState() string {
	if c.breaker == nil {
		return "disabled"
	}
	return c.breaker.State()
}

// FetchPage requests one page of a collection. limit <= 0 leaves the page
// size to the upstream.
func (c *Client) FetchPage(ctx context.Context, ep Endpoint, page, limit int) (*RawPage, error) {
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	for k, v := range ep.Query {
		q[k] = append([]string(nil), v...)
	}
	q.Set("page", strconv.Itoa(page))
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	body, err := c.fetch(ctx, ep.Name, ep.Path, q, c.listRetry)
	if err != nil {
		return nil, err
	}

	var env struct {
		Data       []json.RawMessage `json:"data"`
		Pagination struct {
			HasNextPage bool `json:"has_next_page"`
		} `json:"pagination"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		metrics.RecordUpstreamAttempt(ep.Name, "unparsable")
		logging.Ctx(ctx).Warn().Err(err).Str("endpoint", ep.String()).Int("page", page).
			Msg("Unparsable upstream page treated as empty")
		return &RawPage{}, nil
	}
	return &RawPage{Items: env.Data, HasNext: env.Pagination.HasNextPage}, nil
}

// getData fetches a single-record endpoint and returns its data member.
// It returns nil data without error when the body cannot be parsed.
func (c *Client) getData(ctx context.Context, name, path string) (json.RawMessage, error) {
	body, err := c.fetch(ctx, name, path, nil, c.detailRetry)
	if err != nil {
		return nil, err
	}
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		metrics.RecordUpstreamAttempt(name, "unparsable")
		logging.Ctx(ctx).Warn().Err(err).Str("path", path).Msg("Unparsable upstream record")
		return nil, nil
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, nil
	}
	return env.Data, nil
}

// fetch runs the retry loop, wrapped by the circuit breaker when configured.
func (c *Client) fetch(ctx context.Context, name, path string, q url.Values, policy RetryPolicy) ([]byte, error) {
	reqURL := c.baseURL + path
	if len(q) > 0 {
		reqURL += "?" + q.Encode()
	}

	if c.breaker == nil {
		return c.retryLoop(ctx, name, reqURL, policy)
	}
	body, err := c.breaker.Execute(func() ([]byte, error) {
		body, err := c.retryLoop(ctx, name, reqURL, policy)
		if err != nil && ctx.Err() != nil {
			return nil, &callerAbort{err: err}
		}
		return body, err
	})
	if err != nil {
		var ue *UpstreamError
		if errors.As(err, &ue) {
			return nil, ue
		}
		// Breaker rejected the call before any request was made.
		return nil, &UpstreamError{Endpoint: name, Status: http.StatusServiceUnavailable, Transient: true, Err: err}
	}
	return body, nil
}

func (c *Client) retryLoop(ctx context.Context, name, reqURL string, policy RetryPolicy) ([]byte, error) {
	start := time.Now()
	maxAttempts := policy.attempts()

	for attempt := 1; ; attempt++ {
		body, err := c.attempt(ctx, name, reqURL)
		if err == nil {
			metrics.RecordUpstreamFetch(name, attempt-1, time.Since(start))
			return body, nil
		}

		err.Attempts = attempt
		if !err.Transient || attempt >= maxAttempts || ctx.Err() != nil {
			metrics.RecordUpstreamFetch(name, attempt-1, time.Since(start))
			return nil, err
		}

		wait := policy.delay(attempt)
		logging.Ctx(ctx).Debug().Str("endpoint", name).Int("attempt", attempt).Int("status", err.Status).
			Dur("backoff", wait).Msg("Retrying upstream request")

		if serr := c.sleep(ctx, wait); serr != nil {
			metrics.RecordUpstreamFetch(name, attempt-1, time.Since(start))
			return nil, &UpstreamError{Endpoint: name, Transient: true, Attempts: attempt, Err: serr}
		}
	}
}

// attempt performs one HTTP exchange and classifies the outcome.
func (c *Client) attempt(ctx context.Context, name, reqURL string) ([]byte, *UpstreamError) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &UpstreamError{Endpoint: name, Transient: true, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, &UpstreamError{Endpoint: name, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RecordUpstreamAttempt(name, "transient")
		return nil, &UpstreamError{Endpoint: name, Transient: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		transient := classifyStatus(resp.StatusCode)
		outcome := "permanent"
		if transient {
			outcome = "transient"
		}
		metrics.RecordUpstreamAttempt(name, outcome)
		return nil, &UpstreamError{
			Endpoint:  name,
			Status:    resp.StatusCode,
			Transient: transient,
			Err:       errors.New(readBodyForError(resp.Body)),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		metrics.RecordUpstreamAttempt(name, "transient")
		return nil, &UpstreamError{Endpoint: name, Status: resp.StatusCode, Transient: true, Err: fmt.Errorf("read body: %w", err)}
	}
	metrics.RecordUpstreamAttempt(name, "ok")
	return body, nil
}

func readBodyForError(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return "(failed to read response body)"
	}
	s := strings.TrimSpace(string(b))
	if s == "" {
		return "empty response body"
	}
	return s
}
