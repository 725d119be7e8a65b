// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tomtom215/animescope/internal/logging"
	"github.com/tomtom215/animescope/internal/metrics"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful shutdown path.
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline indicates the context deadline was exceeded.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Server to client message types.
const (
	MessageTypeBatch    = "batch"
	MessageTypePrune    = "prune"
	MessageTypeState    = "state"
	MessageTypeFavorite = "favorite"
	MessageTypeError    = "error"
	MessageTypePong     = "pong"
)

// Client to server message types.
const (
	MessageTypeViewport = "viewport"
	MessageTypeLoadMore = "load_more"
	MessageTypeToggle   = "toggle"
	MessageTypePing     = "ping"
)

// Message is the envelope pushed to the peer.
type Message struct {
	Type   string      `json:"type"`
	ListID string      `json:"list_id,omitempty"`
	Data   interface{} `json:"data"`
}

// Hub tracks the open list streams.
type Hub struct {
	clients map[*Client]bool
	mu      sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]bool)}
}

// Register adds a client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(n))
	logging.Debug().Str("list_id", c.ListID()).Int("total_clients", n).Msg("websocket client connected")
}

// Unregister removes a client and closes its send queue. Calling it twice
// is harmless.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	c.close()
	metrics.WSConnections.Set(float64(n))
	logging.Debug().Str("list_id", c.ListID()).Int("total_clients", n).Msg("websocket client disconnected")
}

// CloseList disconnects every client streaming listID.
func (h *Hub) CloseList(listID string) int {
	var victims []*Client
	h.mu.RLock()
	for c := range h.clients {
		if c.ListID() == listID {
			victims = append(victims, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range victims {
		h.Unregister(c)
	}
	return len(victims)
}

// Serve blocks until ctx is done, then closes every client. It implements
// suture.Service.
func (h *Hub) Serve(ctx context.Context) error {
	<-ctx.Done()
	h.logGracefulShutdown(ctx)
	return ctx.Err()
}

// String names the service in supervisor logs.
func (h *Hub) String() string { return "websocket-hub" }

// logGracefulShutdown closes all clients and logs without an error field,
// since cancellation is the expected path.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.ClientCount()
	h.closeAllClients()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return ShutdownReasonContextDeadline
	default:
		return ShutdownReasonContextCanceled
	}
}

// closeAllClients closes clients in id order.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*Client]bool)
	h.mu.Unlock()

	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	for _, c := range clients {
		c.close()
	}
	metrics.WSConnections.Set(0)
}

// ClientCount returns the number of open streams.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// MarshalMessage encodes a message for the wire.
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
