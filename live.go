/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/Seednode/santabox/exchange"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

const (
	liveWriteWait  = 10 * time.Second
	liveReadLimit  = 1024
	liveSendBuffer = 8
)

// Messages coming from clients
type ClientMessage struct {
	Type     string `json:"type"` // "identify", "heartbeat"
	Username string `json:"username,omitempty"`
}

// SessionStateMessage carries the viewer's personalised session view.
type SessionStateMessage struct {
	Type  string        `json:"type"` // "session_state"
	State exchange.View `json:"state"`
}

// SimpleMessage is for generic notifications ("error", "session_closed").
type SimpleMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type liveClient struct {
	conn      *websocket.Conn
	send      chan any
	sessionID string
	addr      string

	mu       sync.Mutex
	username string
}

func (c *liveClient) name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.username
}

func (c *liveClient) setName(name string) {
	c.mu.Lock()
	c.username = name
	c.mu.Unlock()
}

// liveHub fans session changes out to every websocket watching that session.
type liveHub struct {
	cfg *Config
	svc *exchange.Service

	mu    sync.Mutex
	rooms map[string]map[*liveClient]bool
}

func newLiveHub(cfg *Config, svc *exchange.Service) *liveHub {
	h := &liveHub{
		cfg:   cfg,
		svc:   svc,
		rooms: make(map[string]map[*liveClient]bool),
	}
	svc.Subscribe(h.broadcast)

	return h
}

func (h *liveHub) add(c *liveClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[c.sessionID]
	if !ok {
		room = make(map[*liveClient]bool)
		h.rooms[c.sessionID] = room
	}
	room[c] = true
}

// remove detaches c and closes its send channel. It is safe to call more
// than once.
func (h *liveHub) remove(c *liveClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[c.sessionID]
	if !ok || !room[c] {
		return
	}

	delete(room, c)
	close(c.send)

	if len(room) == 0 {
		delete(h.rooms, c.sessionID)
	}
}

func (h *liveHub) clients(id string) []*liveClient {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]*liveClient, 0, len(h.rooms[id]))
	for c := range h.rooms[id] {
		out = append(out, c)
	}
	return out
}

func (h *liveHub) broadcast(id string) {
	for _, c := range h.clients(id) {
		h.push(c)
	}
}

// push sends c its current view. A client whose buffer is full is dropped
// rather than allowed to stall everyone else.
func (h *liveHub) push(c *liveClient) {
	var msg any

	view, err := h.svc.View(context.Background(), c.sessionID, c.name())
	switch {
	case errors.Is(err, exchange.ErrNotFound):
		msg = SimpleMessage{Type: "session_closed", Message: "This session no longer exists."}
	case err != nil:
		logf(h.cfg, "ERROR: Building live view for %s: %v", c.sessionID, err)
		msg = SimpleMessage{Type: "error", Message: "Unable to load the session."}
	default:
		msg = SessionStateMessage{Type: "session_state", State: view}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.rooms[c.sessionID][c] {
		return
	}

	select {
	case c.send <- msg:
	default:
		delete(h.rooms[c.sessionID], c)
		close(c.send)
	}
}

// closeAll disconnects every client (used on shutdown).
func (h *liveHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, room := range h.rooms {
		for c := range room {
			close(c.send)
			_ = c.conn.Close()
		}
		delete(h.rooms, id)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func serveLive(cfg *Config, svc *exchange.Service, hub *liveHub) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		sessionID := ps.ByName("session")

		if _, err := svc.Get(r.Context(), sessionID); err != nil {
			http.Error(w, http.StatusText(statusFor(err)), statusFor(err))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "ERROR: Websocket upgrade for %s failed: %v", sessionID, err)
			return
		}

		client := &liveClient{
			conn:      conn,
			send:      make(chan any, liveSendBuffer),
			sessionID: sessionID,
			addr:      realIP(r),
			username:  r.URL.Query().Get("username"),
		}

		hub.add(client)
		hub.push(client)

		logf(cfg, "SANTA: Live client %s joined %s", client.addr, sessionID)

		go client.writePump()
		client.readPump(cfg, svc, hub)
	}
}

func (c *liveClient) readPump(cfg *Config, svc *exchange.Service, hub *liveHub) {
	defer func() {
		hub.remove(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(liveReadLimit)

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "identify":
			c.setName(msg.Username)
			hub.push(c)
		case "heartbeat":
			c.setName(msg.Username)

			err := svc.Heartbeat(context.Background(), c.sessionID, msg.Username, c.addr)
			if err != nil && !errors.Is(err, exchange.ErrInvalidName) {
				logf(cfg, "ERROR: Heartbeat for %s in %s: %v", msg.Username, c.sessionID, err)
			}
		default:
			// ignore unknown types
		}
	}
}

func (c *liveClient) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}
