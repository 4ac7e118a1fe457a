package handler

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// EventConnected is sent once when a watcher connects.
const EventConnected = "connected"

// AllSweeps subscribes a connection to every sweep.
const AllSweeps = "*"

// WSEvent is the envelope for all WebSocket messages.
type WSEvent struct {
	Type    string `json:"type"`
	SweepID string `json:"sweep_id"`
	Data    any    `json:"data"`
}

// ClientMessage is the envelope for messages sent from the client.
type ClientMessage struct {
	Action  string `json:"action"` // "subscribe" or "unsubscribe"
	SweepID string `json:"sweep_id"`
}

// WSConn wraps a WebSocket connection with its peer address and send queue.
type WSConn struct {
	conn   *websocket.Conn
	remote string
	send   chan []byte
}

// Hub manages watcher connections and sweep subscriptions. It keeps the
// last event of every sweep so late subscribers see where a sweep stands.
type Hub struct {
	mu          sync.RWMutex
	connections map[*WSConn]bool
	sweeps      map[string]map[*WSConn]bool // sweepID -> set of connections
	latest      map[string][]byte           // sweepID -> last encoded event
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		connections: make(map[*WSConn]bool),
		sweeps:      make(map[string]map[*WSConn]bool),
		latest:      make(map[string][]byte),
	}
}

// Register adds a connection to the hub.
func (h *Hub) Register(c *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[c] = true
}

// Unregister removes a connection from the hub and all its subscriptions.
func (h *Hub) Unregister(c *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.connections[c] {
		return
	}
	delete(h.connections, c)
	for sweepID, conns := range h.sweeps {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.sweeps, sweepID)
		}
	}
	close(c.send)
}

// Close disconnects every watcher. Each write pump flushes its queue before
// sending a close frame.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.connections {
		delete(h.connections, c)
		close(c.send)
	}
	h.sweeps = make(map[string]map[*WSConn]bool)
}

// Subscribe adds a connection to a sweep channel and queues the sweep's
// last event, or the last event of every sweep for AllSweeps.
func (h *Hub) Subscribe(c *WSConn, sweepID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sweeps[sweepID] == nil {
		h.sweeps[sweepID] = make(map[*WSConn]bool)
	}
	h.sweeps[sweepID][c] = true

	if sweepID != AllSweeps {
		if data, ok := h.latest[sweepID]; ok {
			h.enqueue(c, sweepID, data)
		}
		return
	}
	ids := make([]string, 0, len(h.latest))
	for id := range h.latest {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		h.enqueue(c, id, h.latest[id])
	}
}

// Unsubscribe removes a connection from a sweep channel.
func (h *Hub) Unsubscribe(c *WSConn, sweepID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.sweeps[sweepID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.sweeps, sweepID)
		}
	}
}

// BroadcastToSweep sends an event to every connection subscribed to the
// sweep or to AllSweeps and remembers it for later subscribers.
func (h *Hub) BroadcastToSweep(sweepID string, event WSEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("sweepId", sweepID).Msg("Failed to marshal WebSocket event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest[sweepID] = data

	sent := make(map[*WSConn]bool)
	for _, key := range []string{sweepID, AllSweeps} {
		for c := range h.sweeps[key] {
			if sent[c] {
				continue
			}
			sent[c] = true
			h.enqueue(c, sweepID, data)
		}
	}
}

// enqueue queues data without blocking. Slow watchers drop messages. The
// caller holds h.mu so the send channel cannot be closed underneath it.
func (h *Hub) enqueue(c *WSConn, sweepID string, data []byte) {
	if !h.connections[c] {
		return
	}
	select {
	case c.send <- data:
	default:
		log.Warn().Str("remote", c.remote).Str("sweepId", sweepID).Msg("Dropping WebSocket message, buffer full")
	}
}

// ConnectionCount returns the total number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// SweepSubscriberCount returns the number of connections subscribed to a sweep.
func (h *Hub) SweepSubscriberCount(sweepID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sweeps[sweepID])
}
