// Package watch is a WebSocket client for sweep progress events.
package watch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Event mirrors handler.WSEvent for client-side deserialization.
type Event struct {
	Type    string          `json:"type"`
	SweepID string          `json:"sweep_id"`
	Data    json.RawMessage `json:"data"`
}

// Client holds one watcher connection.
type Client struct {
	conn   *websocket.Conn
	events chan Event
	mu     sync.Mutex
	closed bool
}

// Dial connects to a progress endpoint. addr may be a ws:// URL, an
// http:// URL or a bare host:port, in which case /ws is appended.
func Dial(ctx context.Context, addr string) (*Client, error) {
	wsURL := WSURL(addr)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("ws dial %s: %w", wsURL, err)
	}
	c := &Client{conn: conn, events: make(chan Event, 64)}
	go c.readLoop()
	return c, nil
}

// WSURL normalizes addr to a WebSocket URL.
func WSURL(addr string) string {
	switch {
	case strings.HasPrefix(addr, "ws://"), strings.HasPrefix(addr, "wss://"):
		return addr
	case strings.HasPrefix(addr, "http"):
		return strings.Replace(addr, "http", "ws", 1)
	}
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "ws://" + addr + "/ws"
}

// Subscribe asks for events of one sweep, or "*" for all.
func (c *Client) Subscribe(sweepID string) error {
	return c.send("subscribe", sweepID)
}

// Unsubscribe stops events of one sweep.
func (c *Client) Unsubscribe(sweepID string) error {
	return c.send("unsubscribe", sweepID)
}

func (c *Client) send(action, sweepID string) error {
	msg := map[string]string{"action": action, "sweep_id": sweepID}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(msg)
}

// Events returns the channel of incoming events. It is closed when the
// connection ends.
func (c *Client) Events() <-chan Event { return c.events }

// Close closes the connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.conn.Close()
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) readLoop() {
	defer close(c.events)
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if !c.isClosed() {
				log.Debug().Err(err).Msg("WS read error")
			}
			return
		}
		// The server batches queued messages into one frame, newline separated.
		for _, part := range bytes.Split(msg, []byte{'\n'}) {
			if len(bytes.TrimSpace(part)) == 0 {
				continue
			}
			var event Event
			if err := json.Unmarshal(part, &event); err != nil {
				log.Debug().Err(err).Msg("Skipping malformed event")
				continue
			}
			c.events <- event
		}
	}
}
