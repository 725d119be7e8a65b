// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

/*
client.go - Animescope REST API Client

This file implements a client for the Animescope HTTP API. It is the
remote counterpart of the server's collaborators: it implements
favorites.Collaborator over /api/v1/favorites, catalog.CacheReader over
/api/v1/anime-cache and paginate sources over the catalog endpoints, so a
local pagination engine can run against a remote server.
*/

package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/animescope/internal/catalog"
	"github.com/tomtom215/animescope/internal/favorites"
	"github.com/tomtom215/animescope/internal/models"
)

// maxResponseSize bounds the body read from the server.
const maxResponseSize = 8 << 20

var (
	_ favorites.Collaborator = (*Client)(nil)
	_ catalog.CacheReader    = (*Client)(nil)
)

// Client provides access to the Animescope REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a client for baseURL (e.g. http://localhost:3000). token is
// the bearer token from Login and may be empty.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// Token returns the bearer token in use.
func (c *Client) Token() string { return c.token }

// SetToken replaces the bearer token.
func (c *Client) SetToken(token string) { c.token = token }

// envelope is the server's response wrapper.
type envelope struct {
	Success bool             `json:"success"`
	Data    json.RawMessage  `json:"data"`
	Error   *models.APIError `json:"error"`
	Meta    models.Meta      `json:"meta"`
}

// do sends a request and decodes the envelope's data into out. out may be
// nil. Non-2xx responses become *Error.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) (*models.Meta, error) {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", path, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 300 {
			return nil, &Error{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return nil, fmt.Errorf("decode %s response: %w", path, err)
	}
	if resp.StatusCode >= 300 || !env.Success {
		e := &Error{Status: resp.StatusCode}
		if env.Error != nil {
			e.Code, e.Message, e.RequestID = env.Error.Code, env.Error.Message, env.Error.RequestID
		}
		return nil, e
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, fmt.Errorf("decode %s data: %w", path, err)
		}
	}
	return &env.Meta, nil
}

// =====================================================
// Accounts
// =====================================================

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, firstName, lastName, email, password string) (*models.User, error) {
	var u models.User
	_, err := c.do(ctx, http.MethodPost, "/api/v1/auth/register", nil, map[string]string{
		"first_name": firstName,
		"last_name":  lastName,
		"email":      email,
		"password":   password,
	}, &u)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Login starts a session and keeps its bearer token for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (*models.AuthResult, error) {
	var res models.AuthResult
	_, err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", nil, map[string]string{
		"email":    email,
		"password": password,
	}, &res)
	if err != nil {
		return nil, err
	}
	c.token = res.Token
	return &res, nil
}

// Logout ends the session and forgets the token.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/api/v1/auth/logout", nil, nil, nil)
	c.token = ""
	return err
}

// CurrentUser returns the logged-in account, or nil when anonymous.
func (c *Client) CurrentUser(ctx context.Context) (*models.User, error) {
	var u *models.User
	if _, err := c.do(ctx, http.MethodGet, "/api/v1/auth/user", nil, nil, &u); err != nil {
		return nil, err
	}
	return u, nil
}

// Session returns the favorites session for the current token.
func (c *Client) Session(ctx context.Context) (favorites.Session, error) {
	u, err := c.CurrentUser(ctx)
	if err != nil {
		return favorites.Session{}, err
	}
	return favorites.Session{User: u}, nil
}

// =====================================================
// Favorites collaborator
// =====================================================

// ListFavoriteIDs implements favorites.Collaborator.
func (c *Client) ListFavoriteIDs(ctx context.Context) ([]int, error) {
	var ids []int
	if _, err := c.do(ctx, http.MethodGet, "/api/v1/favorites", nil, nil, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// AddFavorite implements favorites.Collaborator.
func (c *Client) AddFavorite(ctx context.Context, animeID int) error {
	_, err := c.do(ctx, http.MethodPost, "/api/v1/favorites", nil, models.FavoriteRequest{AnimeID: animeID}, nil)
	return err
}

// RemoveFavorite implements favorites.Collaborator.
func (c *Client) RemoveFavorite(ctx context.Context, animeID int) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/v1/favorites/"+strconv.Itoa(animeID), nil, nil, nil)
	return err
}

// =====================================================
// Catalog
// =====================================================

// Get implements catalog.CacheReader over the public cache endpoint.
func (c *Client) Get(ctx context.Context, id int) (*models.CacheRecord, error) {
	var rec models.CacheRecord
	if _, err := c.do(ctx, http.MethodGet, "/api/v1/anime-cache/"+strconv.Itoa(id), nil, nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Genres returns the genre list sorted by name.
func (c *Client) Genres(ctx context.Context) ([]models.Genre, error) {
	var genres []models.Genre
	if _, err := c.do(ctx, http.MethodGet, "/api/v1/catalog/genres", nil, nil, &genres); err != nil {
		return nil, err
	}
	return genres, nil
}

// Details returns the detail view of one title.
func (c *Client) Details(ctx context.Context, id int) (*models.Details, error) {
	var d models.Details
	if _, err := c.do(ctx, http.MethodGet, "/api/v1/catalog/anime/"+strconv.Itoa(id), nil, nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// page fetches one CatalogPage from path.
func page[T any](ctx context.Context, c *Client, path string, query url.Values, pageNum, limit int) (models.CatalogPage[T], error) {
	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	q.Set("page", strconv.Itoa(pageNum))
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var p models.CatalogPage[T]
	_, err := c.do(ctx, http.MethodGet, path, q, nil, &p)
	return p, err
}
