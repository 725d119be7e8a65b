// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package cli

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/animescope/internal/jikan"
	"github.com/tomtom215/animescope/internal/models"
)

func writeEnvelope(w http.ResponseWriter, status int, data interface{}, apiErr *models.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(models.APIResponse{Success: apiErr == nil, Data: data, Error: apiErr})
}

func fakeServer(t *testing.T) *httptest.Server {
	t.Helper()
	user := &models.User{ID: 1, Email: "faye@bebop.io", FirstName: "Faye", LastName: "Valentine", Role: models.RoleAdmin}
	authed := func(r *http.Request) bool { return r.Header.Get("Authorization") == "Bearer tok-9" }

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/register", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["email"] == "taken@bebop.io" {
			writeEnvelope(w, http.StatusConflict, nil, &models.APIError{Code: models.CodeConflict, Message: "Email already registered"})
			return
		}
		writeEnvelope(w, http.StatusCreated, &models.User{ID: 2, Email: body["email"], Role: models.RoleUser}, nil)
	})
	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "swordfish2" {
			writeEnvelope(w, http.StatusUnauthorized, nil, &models.APIError{Code: models.CodeUnauthorized, Message: "Invalid email or password"})
			return
		}
		writeEnvelope(w, http.StatusOK, models.AuthResult{User: user, Token: "tok-9"}, nil)
	})
	mux.HandleFunc("POST /api/v1/auth/logout", func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, http.StatusOK, map[string]bool{"logged_out": true}, nil)
	})
	mux.HandleFunc("GET /api/v1/auth/user", func(w http.ResponseWriter, r *http.Request) {
		if !authed(r) {
			writeEnvelope(w, http.StatusOK, nil, nil)
			return
		}
		writeEnvelope(w, http.StatusOK, user, nil)
	})
	mux.HandleFunc("GET /api/v1/catalog/genres", func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, http.StatusOK, []models.Genre{{ID: 1, Name: "Action"}, {ID: 24, Name: "Sci-Fi"}}, nil)
	})
	mux.HandleFunc("GET /api/v1/catalog/anime/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "1" {
			writeEnvelope(w, http.StatusNotFound, nil, &models.APIError{Code: models.CodeNotFound, Message: "Anime not found"})
			return
		}
		score, year, synopsis := 8.75, 1998, "Space cowboys."
		writeEnvelope(w, http.StatusOK, models.Details{
			CatalogItem: models.CatalogItem{ID: 1, Title: "Cowboy Bebop", Score: &score, Year: &year, Synopsis: &synopsis, Status: models.StatusFinished},
			Source:      models.SourceUpstream,
			Studios:     []string{"Sunrise"},
		}, nil)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// run executes the root command and returns stdout.
func run(t *testing.T, srv *httptest.Server, tokenFile string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand("test")
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(append([]string{"--server", srv.URL, "--token-file", tokenFile}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestLoginWhoamiLogout(t *testing.T) {
	srv := fakeServer(t)
	tokenFile := filepath.Join(t.TempDir(), "animescope", "token")

	out, err := run(t, srv, tokenFile, "whoami")
	if err != nil || !strings.Contains(out, "Not logged in") {
		t.Fatalf("anonymous whoami = %q, %v", out, err)
	}

	if _, err := run(t, srv, tokenFile, "login", "--email", "faye@bebop.io", "--password", "wrong"); err == nil ||
		!strings.Contains(err.Error(), "invalid email or password") {
		t.Fatalf("bad login err = %v", err)
	}

	out, err = run(t, srv, tokenFile, "login", "--email", "faye@bebop.io", "--password", "swordfish2")
	if err != nil || !strings.Contains(out, "Logged in as faye@bebop.io") {
		t.Fatalf("login = %q, %v", out, err)
	}
	info, err := os.Stat(tokenFile)
	if err != nil {
		t.Fatalf("token not saved: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("token mode = %v, want 0600", info.Mode().Perm())
	}

	out, err = run(t, srv, tokenFile, "whoami")
	if err != nil || !strings.Contains(out, "Faye Valentine <faye@bebop.io> (admin)") {
		t.Errorf("whoami = %q, %v", out, err)
	}

	if _, err := run(t, srv, tokenFile, "logout"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := os.Stat(tokenFile); !os.IsNotExist(err) {
		t.Error("logout should remove the token file")
	}
}

func TestLogin_PromptsForPassword(t *testing.T) {
	srv := fakeServer(t)
	tokenFile := filepath.Join(t.TempDir(), "token")

	cmd := NewRootCommand("test")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader("swordfish2\n"))
	cmd.SetArgs([]string{"--server", srv.URL, "--token-file", tokenFile, "login", "--email", "faye@bebop.io"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("login: %v", err)
	}
	token, err := loadToken(tokenFile)
	if err != nil || token != "tok-9" {
		t.Errorf("stored token = %q, %v", token, err)
	}
}

func TestRegister(t *testing.T) {
	srv := fakeServer(t)
	tokenFile := filepath.Join(t.TempDir(), "token")
	base := []string{"register", "--first-name", "Ed", "--last-name", "Wong", "--password", "swordfish2"}

	out, err := run(t, srv, tokenFile, append(base, "--email", "ed@bebop.io")...)
	if err != nil || !strings.Contains(out, "Registered ed@bebop.io (user)") {
		t.Fatalf("register = %q, %v", out, err)
	}
	if _, err := os.Stat(tokenFile); !os.IsNotExist(err) {
		t.Error("register should not log in")
	}

	_, err = run(t, srv, tokenFile, append(base, "--email", "taken@bebop.io")...)
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("duplicate register err = %v", err)
	}
}

func TestGenresAndShow(t *testing.T) {
	srv := fakeServer(t)
	tokenFile := filepath.Join(t.TempDir(), "token")

	out, err := run(t, srv, tokenFile, "genres")
	if err != nil || !strings.Contains(out, "24") || !strings.Contains(out, "Sci-Fi") {
		t.Errorf("genres = %q, %v", out, err)
	}

	out, err = run(t, srv, tokenFile, "show", "1")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	for _, want := range []string{"Cowboy Bebop (#1)", "Score:    8.75", "Studios:  Sunrise", "Space cowboys."} {
		if !strings.Contains(out, want) {
			t.Errorf("show output missing %q:\n%s", want, out)
		}
	}

	if _, err := run(t, srv, tokenFile, "show", "99"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("missing show err = %v", err)
	}
	if _, err := run(t, srv, tokenFile, "show", "abc"); err == nil {
		t.Error("non-numeric id should fail")
	}
}

func TestBrowseOptions_Query(t *testing.T) {
	tests := []struct {
		name    string
		opts    BrowseOptions
		want    jikan.Sort
		wantErr bool
	}{
		{"default sort", BrowseOptions{}, "", false},
		{"known sort", BrowseOptions{Sort: "top_rated"}, jikan.SortTopRated, false},
		{"case folded", BrowseOptions{Sort: "AZ"}, jikan.SortAZ, false},
		{"unknown sort", BrowseOptions{Sort: "newest"}, "", true},
		{"negative genre", BrowseOptions{GenreID: -1}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := tt.opts.query()
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && q.Sort != tt.want {
				t.Errorf("sort = %q, want %q", q.Sort, tt.want)
			}
		})
	}
}

func TestBrowse_FavoritesRequiresLogin(t *testing.T) {
	srv := fakeServer(t)
	_, err := run(t, srv, filepath.Join(t.TempDir(), "token"), "browse", "--favorites")
	if err == nil || !strings.Contains(err.Error(), "animescope login") {
		t.Errorf("err = %v", err)
	}
}
