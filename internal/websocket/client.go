// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package websocket

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/animescope/internal/catalog"
	"github.com/tomtom215/animescope/internal/favorites"
	"github.com/tomtom215/animescope/internal/jikan"
	"github.com/tomtom215/animescope/internal/logging"
	"github.com/tomtom215/animescope/internal/metrics"
	"github.com/tomtom215/animescope/internal/models"
	"github.com/tomtom215/animescope/internal/paginate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

// clientIDCounter orders clients for shutdown.
var clientIDCounter atomic.Uint64

// ClientMessage is an operation sent by the peer.
type ClientMessage struct {
	Type     string             `json:"type"`
	Viewport *paginate.Viewport `json:"viewport,omitempty"`
	AnimeID  int                `json:"anime_id,omitempty"`
}

// BatchData is the payload of a batch message.
type BatchData struct {
	Items []paginate.Annotated[any] `json:"items"`
}

// PruneData is the payload of a prune message.
type PruneData struct {
	Removed int `json:"removed"`
}

// StateData is the payload of a state message.
type StateData struct {
	State    paginate.State    `json:"state"`
	Cursor   paginate.Cursor   `json:"cursor"`
	Offset   int               `json:"offset"`
	Retained int               `json:"retained"`
	Viewport paginate.Viewport `json:"viewport"`
}

// FavoriteData is the payload of a favorite message.
type FavoriteData struct {
	AnimeID  int  `json:"anime_id"`
	Favorite bool `json:"favorite"`
}

// ErrorData is the payload of an error message.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Client streams one list over one connection. It implements
// paginate.Renderer[any].
type Client struct {
	id      uint64
	hub     *Hub
	conn    *websocket.Conn
	list    catalog.List
	overlay *favorites.Overlay
	send    chan Message

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	closed      bool
	detach      func()
	unsubscribe func()
}

// NewClient binds conn to list. ctx supplies logging fields and is not used
// for cancellation, since the upgrading request ends before the stream does.
// overlay may be nil, in which case toggles are rejected.
func NewClient(ctx context.Context, hub *Hub, conn *websocket.Conn, list catalog.List, overlay *favorites.Overlay) *Client {
	cctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	return &Client{
		id:      clientIDCounter.Add(1),
		hub:     hub,
		conn:    conn,
		list:    list,
		overlay: overlay,
		send:    make(chan Message, sendBuffer),
		ctx:     cctx,
		cancel:  cancel,
	}
}

// ID returns the client's unique identifier.
func (c *Client) ID() uint64 { return c.id }

// ListID returns the id of the streamed list.
func (c *Client) ListID() string { return c.list.ID() }

// Append implements paginate.Renderer.
func (c *Client) Append(batch []paginate.Annotated[any]) {
	c.enqueue(Message{Type: MessageTypeBatch, ListID: c.ListID(), Data: BatchData{Items: batch}})
}

// RemoveOldest implements paginate.Renderer.
func (c *Client) RemoveOldest(n int) {
	c.enqueue(Message{Type: MessageTypePrune, ListID: c.ListID(), Data: PruneData{Removed: n}})
}

// enqueue queues msg without blocking. A peer that cannot keep up is
// disconnected rather than silently missing batches.
func (c *Client) enqueue(msg Message) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	select {
	case c.send <- msg:
		c.mu.Unlock()
		metrics.WSMessagesSent.WithLabelValues(msg.Type).Inc()
		return
	default:
	}
	c.mu.Unlock()

	logging.Ctx(c.ctx).Warn().Str("list_id", c.ListID()).Msg("websocket send queue full, disconnecting")
	c.hub.Unregister(c)
}

// close stops the write pump and any operation in flight.
func (c *Client) close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.mu.Unlock()
	c.cancel()
}

// Start registers the client, attaches it to the list and starts the pumps.
func (c *Client) Start() {
	c.hub.Register(c)

	detach := c.list.Attach(c)
	var unsubscribe func()
	if c.overlay != nil {
		unsubscribe = c.overlay.OnChange(func(id int, fav bool) {
			c.enqueue(Message{Type: MessageTypeFavorite, ListID: c.ListID(), Data: FavoriteData{AnimeID: id, Favorite: fav}})
		})
	}
	c.mu.Lock()
	c.detach, c.unsubscribe = detach, unsubscribe
	c.mu.Unlock()

	c.sendState()

	go c.writePump()
	go c.readPump()
}

func (c *Client) release() {
	c.mu.Lock()
	detach, unsubscribe := c.detach, c.unsubscribe
	c.detach, c.unsubscribe = nil, nil
	c.mu.Unlock()

	if detach != nil {
		detach()
	}
	if unsubscribe != nil {
		unsubscribe()
	}
}

// readPump runs peer operations one at a time.
func (c *Client) readPump() {
	defer func() {
		c.release()
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Ctx(c.ctx).Warn().Err(err).Msg("unexpected websocket close error")
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError("INVALID_MESSAGE", "message must be a JSON object")
			continue
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg ClientMessage) {
	switch msg.Type {
	case MessageTypePing:
		c.enqueue(Message{Type: MessageTypePong})

	case MessageTypeLoadMore:
		_, err := c.list.LoadNext(c.ctx)
		c.finish(err)

	case MessageTypeViewport:
		if msg.Viewport == nil {
			c.sendError("INVALID_MESSAGE", "viewport is required")
			return
		}
		res, err := c.list.Scroll(c.ctx, *msg.Viewport)
		if err != nil || !res.Skipped {
			c.finish(err)
		}

	case MessageTypeToggle:
		if c.overlay == nil {
			c.sendErr(favorites.ErrUnauthenticated)
			return
		}
		// Success is reported through the overlay listener.
		if _, err := c.overlay.Toggle(c.ctx, msg.AnimeID); err != nil {
			c.sendErr(err)
		}

	default:
		c.sendError("INVALID_MESSAGE", "unknown message type")
	}
}

func (c *Client) finish(err error) {
	if err != nil {
		c.sendErr(err)
	}
	c.sendState()
}

func (c *Client) sendState() {
	snap := c.list.Snapshot()
	c.enqueue(Message{Type: MessageTypeState, ListID: snap.ID, Data: StateData{
		State:    snap.State,
		Cursor:   snap.Cursor,
		Offset:   snap.Offset,
		Retained: len(snap.Items),
		Viewport: snap.Viewport,
	}})
}

func (c *Client) sendErr(err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	c.sendError(ErrorCode(err), err.Error())
}

func (c *Client) sendError(code, message string) {
	c.enqueue(Message{Type: MessageTypeError, ListID: c.ListID(), Data: ErrorData{Code: code, Message: message}})
}

// ErrorCode maps an operation error to the code sent to the peer.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, favorites.ErrUnauthenticated):
		return models.CodeUnauthorized
	case errors.Is(err, favorites.ErrToggleInProgress):
		return models.CodeConflict
	case errors.Is(err, favorites.ErrInvalidID), errors.Is(err, catalog.ErrInvalidID):
		return models.CodeValidation
	case errors.Is(err, jikan.ErrTransientUpstream):
		return models.CodeUpstreamUnavailable
	case errors.Is(err, jikan.ErrPermanentUpstream):
		return models.CodeUpstreamError
	default:
		return models.CodeInternal
	}
}

// writePump pushes queued messages and keeps the connection alive.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			data, err := MarshalMessage(message)
			if err != nil {
				logging.Error().Err(err).Str("type", message.Type).Msg("failed to encode websocket message")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
