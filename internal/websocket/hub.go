// Sigvoid - Wireless Management-Frame Threat Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sigvoid

// Package websocket pushes device updates, sensor diagnostics and alerts to
// browser clients as they happen.
package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/sigvoid/internal/detection"
	"github.com/tomtom215/sigvoid/internal/device"
	"github.com/tomtom215/sigvoid/internal/logging"
	"github.com/tomtom215/sigvoid/internal/metrics"
)

// Message types on the feed.
const (
	MessageTypeSnapshot    = "snapshot"
	MessageTypeDevice      = "device"
	MessageTypeDiagnostics = "diagnostics"
	MessageTypeAlert       = "alert"
	MessageTypePing        = "ping"
	MessageTypePong        = "pong"
)

// Message is one feed frame.
type Message struct {
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot is sent to every client right after it connects.
type Snapshot struct {
	Devices     []device.Summary   `json:"devices"`
	Diagnostics device.Diagnostics `json:"diagnostics"`
}

// Hub fans messages out to connected clients. Broadcasts never block the
// caller: when the hub backlog is full the message is dropped, and a client
// that cannot keep up is disconnected.
type Hub struct {
	broadcast chan Message

	mu      sync.RWMutex
	clients map[*Client]struct{}
}

// NewHub creates a hub.
func NewHub() *Hub {
	return &Hub{
		broadcast: make(chan Message, 256),
		clients:   make(map[*Client]struct{}),
	}
}

// Serve delivers broadcasts until ctx is cancelled, then disconnects every
// client.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		// Shutdown wins over pending broadcasts.
		select {
		case <-ctx.Done():
			n := h.closeAll()
			logging.Info().Str("component", "websocket-hub").Int("clients_closed", n).Msg("Live feed stopped")
			return ctx.Err()
		default:
		}

		select {
		case <-ctx.Done():
			continue
		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

func (h *Hub) String() string { return "websocket-hub" }

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.FeedClients.Set(float64(n))
	logging.Debug().Uint64("client_id", c.id).Int("total_clients", n).Msg("Feed client connected")
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.FeedClients.Set(float64(n))
}

// reply queues msg for c alone, skipping clients that already left.
func (h *Hub) reply(c *Client, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, live := h.clients[c]; !live {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// sorted returns clients in connection order. Callers hold mu.
func (h *Hub) sorted() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })
	return clients
}

func (h *Hub) fanOut(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, c := range h.sorted() {
		select {
		case c.send <- msg:
		default:
			logging.Warn().Uint64("client_id", c.id).Msg("Feed client too slow, disconnecting")
			close(c.send)
			delete(h.clients, c)
		}
	}
	metrics.FeedClients.Set(float64(len(h.clients)))
}

func (h *Hub) closeAll() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.sorted()
	for _, c := range clients {
		close(c.send)
		delete(h.clients, c)
	}
	metrics.FeedClients.Set(0)
	return len(clients)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues a message for every client.
func (h *Hub) Broadcast(messageType string, data any) {
	msg := Message{Type: messageType, Data: data, Timestamp: time.Now().UTC()}
	select {
	case h.broadcast <- msg:
	default:
		logging.Warn().Str("message_type", messageType).Msg("Feed backlog full, dropping message")
	}
}

// DeviceUpdated implements pipeline.Observer.
func (h *Hub) DeviceUpdated(summary device.Summary) {
	if h.ClientCount() == 0 {
		return
	}
	h.Broadcast(MessageTypeDevice, summary)
}

// DiagnosticsUpdated implements pipeline.Observer.
func (h *Hub) DiagnosticsUpdated(diag device.Diagnostics) {
	if h.ClientCount() == 0 {
		return
	}
	h.Broadcast(MessageTypeDiagnostics, diag)
}

// AlertFired implements pipeline.Observer.
func (h *Hub) AlertFired(alert *detection.Alert) {
	if h.ClientCount() == 0 {
		return
	}
	h.Broadcast(MessageTypeAlert, alert)
}
