// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package notify streams build events to browsers over websockets.
//
// A [Hub] is an http.Handler: each request upgrades to a websocket and
// becomes a subscriber. [Hub.Broadcast] fans an [Event] out to every
// subscriber without blocking on any of them; a subscriber whose buffer
// is full is disconnected rather than allowed to stall the build that
// is broadcasting. Subscribers only ever receive, anything they send is
// read and discarded so that close frames are processed.
package notify

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bureau-foundation/bureau-ci/lib/clock"
	"github.com/bureau-foundation/bureau-ci/lib/ledger"
	"github.com/bureau-foundation/bureau-ci/lib/netutil"
)

// Kind distinguishes events on the stream.
type Kind string

const (
	// KindConnected is the first event on every connection.
	KindConnected Kind = "connected"
	// KindTransition reports a pipeline state change.
	KindTransition Kind = "transition"
	// KindBuild carries a finished build's ledger record.
	KindBuild Kind = "build"
)

// Event is one message on the stream, sent as a JSON text frame.
type Event struct {
	Kind       Kind           `json:"kind"`
	Owner      string         `json:"owner,omitempty"`
	Repository string         `json:"repository,omitempty"`
	Commit     string         `json:"commit,omitempty"`
	State      string         `json:"state,omitempty"`
	Build      *ledger.Record `json:"build,omitempty"`
	Time       time.Time      `json:"time"`
}

const (
	writeWait  = 10 * time.Second
	bufferSize = 32
)

// Hub tracks websocket subscribers. Safe for concurrent use.
type Hub struct {
	upgrader websocket.Upgrader
	clock    clock.Clock
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[*subscriber]struct{}
	closed  bool
}

type subscriber struct {
	conn *websocket.Conn
	send chan Event

	// repository, when set, restricts the subscriber to events for
	// that repository name. Connected events always pass.
	repository string
}

// NewHub returns an empty hub. Events are stamped and write deadlines
// computed from c.
func NewHub(c clock.Clock, logger *slog.Logger) *Hub {
	if c == nil {
		panic("notify: clock is required")
	}
	if logger == nil {
		panic("notify: logger is required")
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			// The stream is read-only public build information,
			// served to whichever page embeds it.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clock:   c,
		logger:  logger,
		clients: make(map[*subscriber]struct{}),
	}
}

// ServeHTTP upgrades the request and holds the connection until the
// peer goes away or the hub is closed. The optional "repository" query
// parameter filters the stream to one repository.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an error response.
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	client := &subscriber{
		conn:       conn,
		send:       make(chan Event, bufferSize),
		repository: r.URL.Query().Get("repository"),
	}
	client.send <- Event{Kind: KindConnected, Time: h.clock.Now().UTC()}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			h.clock.Now().Add(writeWait))
		conn.Close()
		return
	}
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("notification subscriber connected",
		"remote", r.RemoteAddr,
		"repository", client.repository,
	)

	go h.writeLoop(client)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) && !netutil.IsExpectedCloseError(err) {
				h.logger.Warn("notification subscriber read failed", "error", err)
			}
			break
		}
	}
	h.remove(client)
}

// writeLoop owns all writes to the connection. It exits, closing the
// connection, once the subscriber's channel is closed by remove.
func (h *Hub) writeLoop(client *subscriber) {
	defer client.conn.Close()
	for event := range client.send {
		client.conn.SetWriteDeadline(h.clock.Now().Add(writeWait))
		if err := client.conn.WriteJSON(event); err != nil {
			if !netutil.IsExpectedCloseError(err) {
				h.logger.Warn("notification write failed", "error", err)
			}
			h.remove(client)
			// Drain so remove's close is observed.
			for range client.send {
			}
			return
		}
	}
	client.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		h.clock.Now().Add(writeWait))
}

// remove unregisters client and closes its channel. Idempotent.
func (h *Hub) remove(client *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(client)
}

func (h *Hub) removeLocked(client *subscriber) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
}

// Broadcast queues event for every matching subscriber. A zero Time is
// filled from the hub's clock. Never blocks on a subscriber.
func (h *Hub) Broadcast(event Event) {
	if event.Time.IsZero() {
		event.Time = h.clock.Now().UTC()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		if client.repository != "" && event.Repository != "" && client.repository != event.Repository {
			continue
		}
		select {
		case client.send <- event:
		default:
			h.logger.Warn("notification subscriber too slow, disconnecting",
				"remote", client.conn.RemoteAddr().String(),
			)
			h.removeLocked(client)
		}
	}
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every subscriber and refuses new ones. Hijacked
// websocket connections are not drained by http.Server.Shutdown, so
// the service calls this during shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for client := range h.clients {
		h.removeLocked(client)
	}
}
