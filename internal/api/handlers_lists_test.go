// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/animescope/internal/catalog"
	"github.com/tomtom215/animescope/internal/models"
	"github.com/tomtom215/animescope/internal/paginate"
	ws "github.com/tomtom215/animescope/internal/websocket"
)

// listSnapshot mirrors catalog.Snapshot with concrete items.
type listSnapshot struct {
	ID     string          `json:"id"`
	Kind   string          `json:"kind"`
	State  string          `json:"state"`
	Cursor paginate.Cursor `json:"cursor"`
	Items  []struct {
		Item     models.CatalogItem `json:"item"`
		Favorite bool               `json:"favorite"`
	} `json:"items"`
}

type listStep struct {
	Batch []struct {
		Item     models.CatalogItem `json:"item"`
		Favorite bool               `json:"favorite"`
	} `json:"batch"`
	State   string `json:"state"`
	Skipped bool   `json:"skipped"`
}

func (e *testEnv) createList(spec catalog.ListSpec, token string) listSnapshot {
	e.t.Helper()
	var snap listSnapshot
	decodeData(e.t, e.expect(http.MethodPost, "/api/v1/lists", spec, token, http.StatusCreated), &snap)
	if snap.ID == "" || snap.State != "idle" {
		e.t.Fatalf("created list = %+v", snap)
	}
	return snap
}

func TestLists_BrowseLifecycle(t *testing.T) {
	e := newTestEnv(t)
	snap := e.createList(catalog.ListSpec{Kind: catalog.KindBrowse, Query: "cowboy"}, "")
	base := "/api/v1/lists/" + snap.ID

	var step listStep
	decodeData(t, e.expect(http.MethodPost, base+"/next", nil, "", http.StatusOK), &step)
	if len(step.Batch) != 2 || step.State != "idle" {
		t.Fatalf("first load = %+v", step)
	}

	decodeData(t, e.expect(http.MethodPost, base+"/next", nil, "", http.StatusOK), &step)
	if len(step.Batch) != 1 || step.State != "exhausted" {
		t.Fatalf("second load = %+v", step)
	}

	// Exhausted lists skip further loads.
	decodeData(t, e.expect(http.MethodPost, base+"/next", nil, "", http.StatusOK), &step)
	if !step.Skipped || len(step.Batch) != 0 {
		t.Errorf("third load = %+v, want skipped", step)
	}

	var got listSnapshot
	decodeData(t, e.expect(http.MethodGet, base, nil, "", http.StatusOK), &got)
	if len(got.Items) != 3 || got.Items[2].Item.Title != "Trigun" {
		t.Errorf("snapshot = %+v", got)
	}

	e.expect(http.MethodDelete, base, nil, "", http.StatusOK)
	e.expect(http.MethodGet, base, nil, "", http.StatusNotFound)
}

func TestLists_AnonymousOwnership(t *testing.T) {
	e := newTestEnv(t)
	e.remoteAddr = "198.51.100.20:5000"
	snap := e.createList(catalog.ListSpec{Kind: catalog.KindBrowse}, "")
	base := "/api/v1/lists/" + snap.ID

	e.remoteAddr = "198.51.100.21:5000"
	e.expect(http.MethodGet, base, nil, "", http.StatusNotFound)
	e.expect(http.MethodPost, base+"/next", nil, "", http.StatusNotFound)
	e.expect(http.MethodDelete, base, nil, "", http.StatusNotFound)

	_, token := e.signup("faye@bebop.io")
	e.expect(http.MethodGet, base, nil, token, http.StatusNotFound)

	e.remoteAddr = "198.51.100.20:6000"
	e.expect(http.MethodGet, base, nil, "", http.StatusOK)
}

func TestLists_Viewport(t *testing.T) {
	e := newTestEnv(t)
	snap := e.createList(catalog.ListSpec{Kind: catalog.KindBrowse}, "")
	base := "/api/v1/lists/" + snap.ID

	// Nothing is loaded, so any viewport is near the end.
	var step listStep
	decodeData(t, e.expect(http.MethodPost, base+"/viewport", paginate.Viewport{First: 0, Last: 0}, "", http.StatusOK), &step)
	if step.Skipped || len(step.Batch) != 2 {
		t.Errorf("viewport load = %+v", step)
	}

	e.expect(http.MethodPost, base+"/viewport", `{"first":"x"}`, "", http.StatusBadRequest)
}

func TestLists_CreateErrors(t *testing.T) {
	e := newTestEnv(t)

	tests := []struct {
		name   string
		spec   interface{}
		status int
	}{
		{"missing kind", map[string]string{}, http.StatusBadRequest},
		{"unknown kind", map[string]string{"kind": "seasonal"}, http.StatusBadRequest},
		{"characters without anime", catalog.ListSpec{Kind: catalog.KindCharacters}, http.StatusBadRequest},
		{"favorites anonymous", catalog.ListSpec{Kind: catalog.KindFavorites}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e.expect(http.MethodPost, "/api/v1/lists", tt.spec, "", tt.status)
		})
	}
}

func TestLists_FavoritesAnnotated(t *testing.T) {
	e := newTestEnv(t)
	_, token := e.signup("spike@bebop.io")
	e.expect(http.MethodPost, "/api/v1/favorites", models.FavoriteRequest{AnimeID: 5}, token, http.StatusCreated)

	snap := e.createList(catalog.ListSpec{Kind: catalog.KindBrowse}, token)
	var step listStep
	decodeData(t, e.expect(http.MethodPost, "/api/v1/lists/"+snap.ID+"/next", nil, token, http.StatusOK), &step)
	if len(step.Batch) != 2 {
		t.Fatalf("batch = %+v", step.Batch)
	}
	if step.Batch[0].Favorite || !step.Batch[1].Favorite {
		t.Errorf("favorite flags = %v %v, want false true", step.Batch[0].Favorite, step.Batch[1].Favorite)
	}

	// Another session cannot see a signed-in owner's list.
	_, other := e.signup("jet@bebop.io")
	e.expect(http.MethodGet, "/api/v1/lists/"+snap.ID, nil, other, http.StatusNotFound)
}

func TestLists_LogoutClosesLists(t *testing.T) {
	e := newTestEnv(t)
	_, token := e.signup("spike@bebop.io")
	snap := e.createList(catalog.ListSpec{Kind: catalog.KindBrowse}, token)

	e.expect(http.MethodPost, "/api/v1/auth/logout", nil, token, http.StatusOK)
	if e.lists.Len() != 0 {
		t.Errorf("open lists after logout = %d, want 0", e.lists.Len())
	}
	e.expect(http.MethodGet, "/api/v1/lists/"+snap.ID, nil, "", http.StatusNotFound)
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func readMessage(t *testing.T, conn *websocket.Conn, wantType string) ws.Message {
	t.Helper()
	for {
		if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
			t.Fatalf("SetReadDeadline: %v", err)
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read %s: %v", wantType, err)
		}
		var msg struct {
			Type   string          `json:"type"`
			ListID string          `json:"list_id"`
			Data   json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("decode %s: %v", data, err)
		}
		if msg.Type == wantType {
			return ws.Message{Type: msg.Type, ListID: msg.ListID, Data: msg.Data}
		}
	}
}

func TestStreamList(t *testing.T) {
	e := newTestEnv(t)
	srv := httptest.NewServer(e.handler)
	defer srv.Close()

	snap := e.createList(catalog.ListSpec{Kind: catalog.KindBrowse}, "")
	header := http.Header{"Origin": []string{testOrigin}}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/api/v1/lists/"+snap.ID+"/stream"), header)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	state := readMessage(t, conn, ws.MessageTypeState)
	if state.ListID != snap.ID {
		t.Errorf("state list_id = %q, want %q", state.ListID, snap.ID)
	}

	if err := conn.WriteJSON(ws.ClientMessage{Type: ws.MessageTypeLoadMore}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	batch := readMessage(t, conn, ws.MessageTypeBatch)
	var data struct {
		Items []struct {
			Item models.CatalogItem `json:"item"`
		} `json:"items"`
	}
	if err := json.Unmarshal(batch.Data.(json.RawMessage), &data); err != nil {
		t.Fatalf("decode batch: %v", err)
	}
	if len(data.Items) != 2 || data.Items[0].Item.ID != 1 {
		t.Errorf("batch = %+v", data.Items)
	}

	// Toggling needs a signed-in stream.
	if err := conn.WriteJSON(ws.ClientMessage{Type: ws.MessageTypeToggle, AnimeID: 1}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	errMsg := readMessage(t, conn, ws.MessageTypeError)
	if !strings.Contains(string(errMsg.Data.(json.RawMessage)), models.CodeUnauthorized) {
		t.Errorf("toggle error = %s", errMsg.Data)
	}

	// Deleting the list ends the stream.
	e.expect(http.MethodDelete, "/api/v1/lists/"+snap.ID, nil, "", http.StatusOK)
	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		t.Fatalf("SetReadDeadline: %v", err)
	}
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	if n := e.hub.ClientCount(); n != 0 {
		t.Errorf("hub clients = %d, want 0", n)
	}
}

func TestStreamList_RejectsOrigin(t *testing.T) {
	e := newTestEnv(t)
	srv := httptest.NewServer(e.handler)
	defer srv.Close()
	snap := e.createList(catalog.ListSpec{Kind: catalog.KindBrowse}, "")

	tests := []struct {
		name   string
		header http.Header
	}{
		{"missing origin", nil},
		{"foreign origin", http.Header{"Origin": []string{"https://evil.example"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/api/v1/lists/"+snap.ID+"/stream"), tt.header)
			if err == nil {
				t.Fatal("Dial should fail")
			}
			if resp == nil || resp.StatusCode != http.StatusForbidden {
				t.Errorf("response = %+v, want 403", resp)
			}
		})
	}

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/api/v1/lists/missing/stream"), http.Header{"Origin": []string{testOrigin}})
	if err == nil || resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown list: err = %v, resp = %+v", err, resp)
	}
}
