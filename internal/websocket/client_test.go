// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/animescope/internal/favorites"
	"github.com/tomtom215/animescope/internal/models"
)

type wireMessage struct {
	Type   string          `json:"type"`
	ListID string          `json:"list_id"`
	Data   json.RawMessage `json:"data"`
}

// memFavorites is a favorites.Collaborator that can be told to fail.
type memFavorites struct {
	mu   sync.Mutex
	ids  []int
	fail error
}

func (m *memFavorites) ListFavoriteIDs(context.Context) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.ids...), nil
}

func (m *memFavorites) AddFavorite(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.ids = append(m.ids, id)
	return nil
}

func (m *memFavorites) RemoveFavorite(context.Context, int) error { return nil }

// streamServer serves list over a websocket at its URL.
func streamServer(t *testing.T, hub *Hub, list *fakeList, overlay *favorites.Overlay) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		NewClient(r.Context(), hub, conn, list, overlay).Start()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) wireMessage {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("deadline: %v", err)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg wireMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return msg
}

func expectType(t *testing.T, conn *websocket.Conn, want string) wireMessage {
	t.Helper()
	msg := readMessage(t, conn)
	if msg.Type != want {
		t.Fatalf("message type = %q (%s), want %q", msg.Type, msg.Data, want)
	}
	return msg
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestClient_LoadMoreStreamsBatch(t *testing.T) {
	hub := NewHub()
	list := newFakeList("list-1")
	conn := dial(t, streamServer(t, hub, list, nil))

	state := expectType(t, conn, MessageTypeState)
	if state.ListID != "list-1" {
		t.Errorf("list_id = %q", state.ListID)
	}

	send(t, conn, ClientMessage{Type: MessageTypeLoadMore})
	batch := expectType(t, conn, MessageTypeBatch)
	var data BatchData
	if err := json.Unmarshal(batch.Data, &data); err != nil {
		t.Fatal(err)
	}
	if len(data.Items) != 1 {
		t.Errorf("batch items = %d, want 1", len(data.Items))
	}

	var sd struct {
		State    string `json:"state"`
		Retained int    `json:"retained"`
	}
	after := expectType(t, conn, MessageTypeState)
	if err := json.Unmarshal(after.Data, &sd); err != nil {
		t.Fatal(err)
	}
	if sd.State != "idle" || sd.Retained != 1 {
		t.Errorf("state = %+v", sd)
	}
}

func TestClient_ViewportLoadsAndPrunes(t *testing.T) {
	hub := NewHub()
	list := newFakeList("l")
	conn := dial(t, streamServer(t, hub, list, nil))
	expectType(t, conn, MessageTypeState)

	sawPrune := false
	for i := 0; i < 4; i++ {
		send(t, conn, map[string]any{"type": "viewport", "viewport": map[string]int{"first": 0, "last": 10}})
		expectType(t, conn, MessageTypeBatch)
		msg := readMessage(t, conn)
		if msg.Type == MessageTypePrune {
			sawPrune = true
			var pd PruneData
			if err := json.Unmarshal(msg.Data, &pd); err != nil || pd.Removed != 1 {
				t.Errorf("prune = %s", msg.Data)
			}
			msg = readMessage(t, conn)
		}
		if msg.Type != MessageTypeState {
			t.Fatalf("type = %q, want state", msg.Type)
		}
	}
	if !sawPrune {
		t.Error("expected a prune after the fourth item")
	}
}

func TestClient_ViewportFarFromEndIsQuiet(t *testing.T) {
	hub := NewHub()
	conn := dial(t, streamServer(t, hub, newFakeList("l"), nil))
	expectType(t, conn, MessageTypeState)

	send(t, conn, ClientMessage{Type: MessageTypeLoadMore})
	expectType(t, conn, MessageTypeBatch)
	expectType(t, conn, MessageTypeState)
	send(t, conn, ClientMessage{Type: MessageTypeLoadMore})
	expectType(t, conn, MessageTypeBatch)
	expectType(t, conn, MessageTypeState)

	// Index 0 of two is not near the end, so nothing is pushed before the pong.
	send(t, conn, map[string]any{"type": "viewport", "viewport": map[string]int{"first": 0, "last": 0}})
	send(t, conn, ClientMessage{Type: MessageTypePing})
	expectType(t, conn, MessageTypePong)
}

func TestClient_LoadErrorReported(t *testing.T) {
	hub := NewHub()
	list := newFakeList("l")
	list.fail = errors.New("upstream exploded")
	conn := dial(t, streamServer(t, hub, list, nil))
	expectType(t, conn, MessageTypeState)

	send(t, conn, ClientMessage{Type: MessageTypeLoadMore})
	msg := expectType(t, conn, MessageTypeError)
	var ed ErrorData
	if err := json.Unmarshal(msg.Data, &ed); err != nil {
		t.Fatal(err)
	}
	if ed.Code != "INTERNAL_ERROR" || ed.Message != "upstream exploded" {
		t.Errorf("error = %+v", ed)
	}
	expectType(t, conn, MessageTypeState)
}

func TestClient_Toggle(t *testing.T) {
	tests := []struct {
		name     string
		overlay  func() *favorites.Overlay
		wantType string
		wantCode string
	}{
		{
			name:     "no overlay",
			overlay:  func() *favorites.Overlay { return nil },
			wantType: MessageTypeError,
			wantCode: "UNAUTHORIZED",
		},
		{
			name:     "anonymous overlay",
			overlay:  func() *favorites.Overlay { return favorites.NewOverlay(favorites.Session{}, nil) },
			wantType: MessageTypeError,
			wantCode: "UNAUTHORIZED",
		},
		{
			name: "logged in",
			overlay: func() *favorites.Overlay {
				return favorites.NewOverlay(favorites.Session{User: &models.User{ID: 1}}, &memFavorites{})
			},
			wantType: MessageTypeFavorite,
		},
		{
			name: "store failure",
			overlay: func() *favorites.Overlay {
				return favorites.NewOverlay(favorites.Session{User: &models.User{ID: 1}}, &memFavorites{fail: errors.New("disk full")})
			},
			wantType: MessageTypeError,
			wantCode: "INTERNAL_ERROR",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			overlay := tt.overlay()
			conn := dial(t, streamServer(t, NewHub(), newFakeList("l"), overlay))
			expectType(t, conn, MessageTypeState)

			send(t, conn, ClientMessage{Type: MessageTypeToggle, AnimeID: 5423})
			msg := expectType(t, conn, tt.wantType)
			switch tt.wantType {
			case MessageTypeError:
				var ed ErrorData
				if err := json.Unmarshal(msg.Data, &ed); err != nil {
					t.Fatal(err)
				}
				if ed.Code != tt.wantCode {
					t.Errorf("code = %q, want %q", ed.Code, tt.wantCode)
				}
				if overlay != nil && overlay.IsFavorite(5423) {
					t.Error("failed toggle must leave the flag unchanged")
				}
			case MessageTypeFavorite:
				var fd FavoriteData
				if err := json.Unmarshal(msg.Data, &fd); err != nil {
					t.Fatal(err)
				}
				if fd.AnimeID != 5423 || !fd.Favorite {
					t.Errorf("favorite = %+v", fd)
				}
			}
		})
	}
}

func TestClient_ExternalFavoritePushed(t *testing.T) {
	overlay := favorites.NewOverlay(favorites.Session{User: &models.User{ID: 1}}, &memFavorites{})
	conn := dial(t, streamServer(t, NewHub(), newFakeList("l"), overlay))
	expectType(t, conn, MessageTypeState)

	overlay.Set(99, true)
	msg := expectType(t, conn, MessageTypeFavorite)
	var fd FavoriteData
	if err := json.Unmarshal(msg.Data, &fd); err != nil {
		t.Fatal(err)
	}
	if fd.AnimeID != 99 {
		t.Errorf("anime_id = %d, want 99", fd.AnimeID)
	}
}

func TestClient_InvalidMessages(t *testing.T) {
	conn := dial(t, streamServer(t, NewHub(), newFakeList("l"), nil))
	expectType(t, conn, MessageTypeState)

	for _, raw := range []string{`not json`, `{"type":"dance"}`, `{"type":"viewport"}`} {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
			t.Fatal(err)
		}
		msg := expectType(t, conn, MessageTypeError)
		var ed ErrorData
		if err := json.Unmarshal(msg.Data, &ed); err != nil || ed.Code != "INVALID_MESSAGE" {
			t.Errorf("%s: error = %s", raw, msg.Data)
		}
	}
}

func TestClient_DisconnectDetaches(t *testing.T) {
	hub := NewHub()
	list := newFakeList("l")
	overlay := favorites.NewOverlay(favorites.Session{User: &models.User{ID: 1}}, &memFavorites{})
	conn := dial(t, streamServer(t, hub, list, overlay))
	expectType(t, conn, MessageTypeState)

	if !list.attached() || hub.ClientCount() != 1 {
		t.Fatal("client should be attached and registered")
	}
	_ = conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for (list.attached() || hub.ClientCount() != 0) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if list.attached() {
		t.Error("renderer should be detached after disconnect")
	}
	if hub.ClientCount() != 0 {
		t.Error("client should be unregistered after disconnect")
	}
	overlay.Set(1, true) // must not panic on a closed client
}

func TestClient_CloseListEndsStream(t *testing.T) {
	hub := NewHub()
	conn := dial(t, streamServer(t, hub, newFakeList("doomed"), nil))
	expectType(t, conn, MessageTypeState)

	if n := hub.CloseList("doomed"); n != 1 {
		t.Fatalf("CloseList = %d, want 1", n)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("read err = %v, want normal closure", err)
	}
}
