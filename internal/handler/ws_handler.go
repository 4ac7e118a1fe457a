package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = 54 * time.Second // Must be less than pongWait
	maxMsgSize  = 4096
	sendBufSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // watchers are local tools
	},
}

// WSHandler streams sweep progress to watchers.
type WSHandler struct {
	hub *Hub
}

// NewWSHandler creates a WSHandler.
func NewWSHandler(hub *Hub) *WSHandler {
	return &WSHandler{hub: hub}
}

// ServeWS handles GET /ws and upgrades to WebSocket.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &WSConn{
		conn:   conn,
		remote: r.RemoteAddr,
		send:   make(chan []byte, sendBufSize),
	}
	h.hub.Register(client)

	// Send a welcome message so the client can confirm the connection is live.
	welcome, _ := json.Marshal(WSEvent{Type: EventConnected, Data: map[string]any{}})
	client.send <- welcome

	go h.writePump(client)
	go h.readPump(client)

	log.Info().Str("remote", client.remote).Int("total", h.hub.ConnectionCount()).Msg("WebSocket watcher connected")
}

// readPump reads messages from the WebSocket connection.
func (h *WSHandler) readPump(c *WSConn) {
	defer func() {
		h.hub.Unregister(c)
		c.conn.Close()
		log.Info().Str("remote", c.remote).Msg("WebSocket watcher disconnected")
	}()

	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("remote", c.remote).Msg("WebSocket unexpected close")
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		h.handleMessage(c, msg)
	}
}

// handleMessage applies a subscription change. An empty sweep ID means
// every sweep.
func (h *WSHandler) handleMessage(c *WSConn, msg ClientMessage) {
	sweepID := msg.SweepID
	if sweepID == "" {
		sweepID = AllSweeps
	}
	switch msg.Action {
	case "subscribe":
		h.hub.Subscribe(c, sweepID)
		log.Debug().Str("remote", c.remote).Str("sweepId", sweepID).Msg("Watcher subscribed")
	case "unsubscribe":
		h.hub.Unsubscribe(c, sweepID)
		log.Debug().Str("remote", c.remote).Str("sweepId", sweepID).Msg("Watcher unsubscribed")
	default:
		log.Debug().Str("remote", c.remote).Str("action", msg.Action).Msg("Ignoring unknown watcher action")
	}
}

// writePump forwards queued events. Events queued while a frame is being
// written go out in the next frame, newline separated. When the hub closes
// the queue the pump flushes what is left and sends a normal close.
func (h *WSHandler) writePump(c *WSConn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := writeBatch(c, message); err != nil {
				log.Debug().Err(err).Str("remote", c.remote).Msg("WebSocket write failed")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// writeBatch writes first plus whatever is already queued as one text frame.
func writeBatch(c *WSConn, first []byte) error {
	w, err := c.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	w.Write(first)
	for n := len(c.send); n > 0; n-- {
		next, ok := <-c.send
		if !ok {
			break
		}
		w.Write([]byte{'\n'})
		w.Write(next)
	}
	return w.Close()
}
