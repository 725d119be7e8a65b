// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/animescope/internal/audit"
	"github.com/tomtom215/animescope/internal/auth"
	"github.com/tomtom215/animescope/internal/authz"
	"github.com/tomtom215/animescope/internal/catalog"
	"github.com/tomtom215/animescope/internal/config"
	"github.com/tomtom215/animescope/internal/database"
	"github.com/tomtom215/animescope/internal/jikan"
	"github.com/tomtom215/animescope/internal/models"
	ws "github.com/tomtom215/animescope/internal/websocket"
)

const testOrigin = "http://localhost:3000"

func TestMain(m *testing.M) {
	auth.BcryptCost = bcrypt.MinCost
	os.Exit(m.Run())
}

// testDBSemaphore serializes DuckDB use across tests.
var testDBSemaphore = make(chan struct{}, 1)

// stubUpstream serves a small fixed catalog.
type stubUpstream struct {
	mu      sync.Mutex
	pages   map[int][]map[string]any
	last    int
	details map[int]*models.Details
	pageErr error
	state   string
}

func newStubUpstream() *stubUpstream {
	return &stubUpstream{
		pages: map[int][]map[string]any{
			1: {
				{"mal_id": 1, "title": "Cowboy Bebop", "status": "Finished Airing", "members": 1900000},
				{"mal_id": 5, "title": "Cowboy Bebop: The Movie", "status": "Finished Airing"},
			},
			2: {
				{"mal_id": 6, "title": "Trigun", "status": "Finished Airing"},
			},
		},
		last: 2,
		details: map[int]*models.Details{
			1: {CatalogItem: models.CatalogItem{ID: 1, Title: "Cowboy Bebop", Status: models.StatusFinished}},
		},
		state: "closed",
	}
}

func (s *stubUpstream) FetchPage(_ context.Context, ep jikan.Endpoint, page, _ int) (*jikan.RawPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pageErr != nil {
		return nil, s.pageErr
	}
	if ep.Name != "anime_search" {
		return &jikan.RawPage{}, nil
	}
	var raws []json.RawMessage
	for _, it := range s.pages[page] {
		b, _ := json.Marshal(it)
		raws = append(raws, b)
	}
	return &jikan.RawPage{Items: raws, HasNext: page < s.last}, nil
}

func (s *stubUpstream) Genres(context.Context) ([]models.Genre, error) {
	return []models.Genre{{ID: 1, Name: "Action"}, {ID: 4, Name: "Comedy"}}, nil
}

func (s *stubUpstream) Anime(_ context.Context, id int) (*models.CatalogItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.details[id]; ok {
		it := d.CatalogItem
		return &it, nil
	}
	return nil, jikan.ErrNoData
}

func (s *stubUpstream) AnimeDetails(_ context.Context, id int) (*models.Details, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.details[id]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, &jikan.UpstreamError{Endpoint: "anime_full", Status: 404}
}

func (s *stubUpstream) Characters(context.Context, int) ([]models.Character, error) {
	return nil, nil
}

func (s *stubUpstream) BreakerState() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// testEnv is a fully wired router over an in-memory database.
type testEnv struct {
	t        *testing.T
	db       *database.DB
	upstream *stubUpstream
	lists    *catalog.Registry
	hub      *ws.Hub
	handler  http.Handler

	// remoteAddr is the client address of recorded requests. It defaults
	// to loopback so lists opened here are reachable from dialed servers.
	remoteAddr string
}

func testConfig() *config.Config {
	return &config.Config{
		Catalog: config.CatalogConfig{
			PageSize:           25,
			MinQueryLength:     3,
			DetailChunkSize:    5,
			MaxRetained:        500,
			ScrollThreshold:    5,
			ListIdleTTL:        15 * time.Minute,
			MaxListsPerSession: 3,
		},
		Security: config.SecurityConfig{
			SessionTTL:        time.Hour,
			MinPasswordLength: 8,
			CORSOrigins:       []string{testOrigin},
			RateLimitDisabled: true,
		},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() { <-testDBSemaphore })

	db, err := database.New(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "256MB", Threads: 1})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	cfg := testConfig()
	up := newStubUpstream()
	svc := catalog.NewService(up, db.Cache(), cfg.Catalog)
	warmer := catalog.NewCacheWarmer(up, db.Cache(), 16)
	lists := catalog.NewRegistry(svc, FavoritesCollaborator(db.Favorites(), warmer))
	hub := ws.NewHub()
	lists.OnClose(func(id string) { hub.CloseList(id) })

	jwtMgr, err := auth.NewJWTManager("test-secret-test-secret-test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}
	sessCfg := auth.DefaultSessionMiddlewareConfig()
	sessCfg.SessionTTL = time.Hour
	sessions := auth.NewSessionMiddleware(auth.NewMemorySessionStore(), UserLoader(db.Users()), jwtMgr, sessCfg)

	enforcer, err := authz.NewEnforcer(nil)
	if err != nil {
		t.Fatalf("NewEnforcer: %v", err)
	}
	t.Cleanup(enforcer.Close)

	auditLog := audit.NewLogger(audit.NewMemoryStore(0), &audit.Config{RetentionDays: 30})

	h := NewHandler(Dependencies{
		DB:       db,
		Catalog:  svc,
		Lists:    lists,
		Warmer:   warmer,
		Upstream: up,
		Hub:      hub,
		Sessions: sessions,
		Config:   cfg,
		Audit:    auditLog,
	})
	router := NewRouter(h, sessions, authz.NewMiddleware(enforcer, AuthzDenied),
		NewChiMiddleware(ChiMiddlewareConfigFromSecurity(&cfg.Security)))

	return &testEnv{t: t, db: db, upstream: up, lists: lists, hub: hub, handler: router.SetupChi(),
		remoteAddr: "127.0.0.1:40000"}
}

// envelope is the decoded API response.
type envelope struct {
	Success bool             `json:"success"`
	Data    json.RawMessage  `json:"data"`
	Error   *models.APIError `json:"error"`
	Meta    models.Meta      `json:"meta"`
}

// do sends a request with an optional JSON body and bearer token.
func (e *testEnv) do(method, path string, body interface{}, token string) (*httptest.ResponseRecorder, envelope) {
	e.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			e.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if e.remoteAddr != "" {
		req.RemoteAddr = e.remoteAddr
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			e.t.Fatalf("%s %s: decode envelope: %v (body %q)", method, path, err, w.Body.String())
		}
	}
	return w, env
}

// expect fails the test unless the response has the given status.
func (e *testEnv) expect(method, path string, body interface{}, token string, status int) envelope {
	e.t.Helper()
	w, env := e.do(method, path, body, token)
	if w.Code != status {
		e.t.Fatalf("%s %s: status = %d, want %d (body %s)", method, path, w.Code, status, w.Body.String())
	}
	return env
}

func decodeData(t *testing.T, env envelope, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
}

// signup registers an account and returns a bearer token for it.
func (e *testEnv) signup(email string) (*models.User, string) {
	e.t.Helper()
	e.expect(http.MethodPost, "/api/v1/auth/register", RegisterRequest{
		FirstName: "Spike", LastName: "Spiegel", Email: email, Password: "swordfish2",
	}, "", http.StatusCreated)

	env := e.expect(http.MethodPost, "/api/v1/auth/login", LoginRequest{Email: email, Password: "swordfish2"}, "", http.StatusOK)
	var res models.AuthResult
	decodeData(e.t, env, &res)
	if res.Token == "" || res.User == nil {
		e.t.Fatalf("login result = %+v", res)
	}
	return res.User, res.Token
}
