// Sigvoid - Wireless Management-Frame Threat Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sigvoid

package websocket

import (
	"net/http"
	"slices"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/sigvoid/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = time.Minute
	pingPeriod     = 54 * time.Second
	maxMessageSize = 4 * 1024
	sendBuffer     = 64
)

var nextClientID atomic.Uint64

// Client is one feed subscriber. Only the hub closes send.
type Client struct {
	id   uint64
	hub  *Hub
	conn *websocket.Conn
	send chan Message
}

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{id: nextClientID.Add(1), hub: hub, conn: conn, send: make(chan Message, sendBuffer)}
}

// ID returns the connection-ordered client id.
func (c *Client) ID() uint64 { return c.id }

func (c *Client) extendRead(string) error {
	return c.conn.SetReadDeadline(time.Now().Add(pongWait))
}

// receive consumes inbound frames until the peer goes away. The feed is
// one-way; the only request honoured is an application-level ping.
func (c *Client) receive() {
	defer c.hub.unregister(c)
	defer c.conn.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(c.extendRead)
	if c.extendRead("") != nil {
		return
	}

	for {
		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Debug().Err(err).Uint64("client_id", c.id).Msg("Feed client read failed")
			}
			return
		}
		if msg.Type == MessageTypePing {
			c.hub.reply(c, Message{Type: MessageTypePong, Timestamp: time.Now().UTC()})
		}
	}
}

// frame writes one frame under a fresh write deadline.
func (c *Client) frame(msg *Message) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	if msg == nil {
		return c.conn.WriteMessage(websocket.PingMessage, nil)
	}
	return c.conn.WriteJSON(msg)
}

// transmit drains send onto the socket and keeps the peer alive with
// protocol pings. A closed send channel ends the connection with a close
// frame.
func (c *Client) transmit() {
	keepalive := time.NewTicker(pingPeriod)
	defer keepalive.Stop()
	defer c.conn.Close()

	for {
		var err error
		select {
		case msg, open := <-c.send:
			if !open {
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			err = c.frame(&msg)
		case <-keepalive.C:
			err = c.frame(nil)
		}
		if err != nil {
			logging.Debug().Err(err).Uint64("client_id", c.id).Msg("Feed client write failed")
			return
		}
	}
}

// Handler upgrades HTTP requests to feed connections.
type Handler struct {
	hub      *Hub
	snapshot func() Snapshot
	upgrader websocket.Upgrader
}

// NewHandler creates the upgrade handler. snapshot may be nil. An origin
// list containing "*" accepts any origin; an empty list only accepts
// same-origin requests.
func NewHandler(hub *Hub, snapshot func() Snapshot, allowedOrigins []string) *Handler {
	h := &Handler{hub: hub, snapshot: snapshot}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
	}
	if slices.Contains(allowedOrigins, "*") {
		h.upgrader.CheckOrigin = func(*http.Request) bool { return true }
	} else if len(allowedOrigins) > 0 {
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			return slices.Contains(allowedOrigins, r.Header.Get("Origin"))
		}
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		logging.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("Feed upgrade rejected")
		return
	}

	c := newClient(h.hub, conn)
	// Queued before register so the hub cannot have closed send yet.
	if h.snapshot != nil {
		c.send <- Message{Type: MessageTypeSnapshot, Data: h.snapshot(), Timestamp: time.Now().UTC()}
	}
	h.hub.register(c)

	go c.transmit()
	go c.receive()
}
