package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/anstrom/ipscannr/internal/api/middleware"
	"github.com/anstrom/ipscannr/internal/logging"
	"github.com/anstrom/ipscannr/internal/session"
)

const (
	// WebSocket configuration constants.
	writeWait       = 10 * time.Second                                   // Time allowed to write a message to the peer
	pongWait        = 60 * time.Second                                   // Time to read next pong message from peer
	pingPeriodRatio = 0.9                                                // Ratio of pongWait for pingPeriod
	pingPeriod      = time.Duration(float64(pongWait) * pingPeriodRatio) // Send pings to peer (must be < pongWait)
	maxMessageSize  = 512                                                // Maximum message size allowed from peer
	bufferSize      = 256                                                // Size of the broadcast and client buffers
)

// WebSocketMessage represents a WebSocket message structure.
type WebSocketMessage struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

type client struct {
	conn      *websocket.Conn
	send      chan []byte
	requestID string
}

// Hub fans run events out to WebSocket clients. Each client receives a
// "snapshot" message on connect, then "host" and "complete" messages as runs
// progress. Slow clients are dropped rather than blocking the run.
type Hub struct {
	logger   *logging.Logger
	snapshot func() session.Snapshot
	upgrader websocket.Upgrader

	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	shutdown   chan struct{}
	stopOnce   sync.Once
	mutex      sync.RWMutex
}

// NewHub creates a hub and starts its loop. snapshot may be nil. A nil
// checkOrigin only accepts same-origin upgrades.
func NewHub(logger *logging.Logger, snapshot func() session.Snapshot, checkOrigin func(*http.Request) bool) *Hub {
	h := &Hub{
		logger:   logger.WithComponent("api.websocket"),
		snapshot: snapshot,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, bufferSize),
		register:   make(chan *client),
		unregister: make(chan *client),
		shutdown:   make(chan struct{}),
	}
	go h.run()
	return h
}

// Forward drains events in the background and broadcasts each one.
func (h *Hub) Forward(events <-chan session.Event) {
	go func() {
		for ev := range events {
			h.publish(ev.Type.String(), ev)
		}
	}()
}

func (h *Hub) publish(msgType string, data any) {
	msg, err := encodeMessage(msgType, data)
	if err != nil {
		h.logger.Error("Failed to marshal websocket message", "type", msgType, "error", err)
		return
	}
	select {
	case h.broadcast <- msg:
	case <-h.shutdown:
	default:
		h.logger.Warn("Broadcast channel full, dropping message", "type", msgType)
	}
}

func encodeMessage(msgType string, data any) ([]byte, error) {
	return json.Marshal(WebSocketMessage{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
}

// ServeWS handles GET /ws.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade WebSocket connection", "request_id", requestID, "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, bufferSize), requestID: requestID}
	if h.snapshot != nil {
		if msg, err := encodeMessage("snapshot", h.snapshot()); err == nil {
			c.send <- msg
		}
	}

	select {
	case h.register <- c:
	case <-h.shutdown:
		_ = conn.Close()
		return
	}
	h.logger.Debug("WebSocket client connected", "request_id", requestID, "remote_addr", r.RemoteAddr)

	go h.writePump(c)
	h.readPump(c)
}

// run manages client connections and broadcasts.
func (h *Hub) run() {
	for {
		select {
		case <-h.shutdown:
			h.mutex.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mutex.Unlock()
			return

		case c := <-h.register:
			h.mutex.Lock()
			h.clients[c] = true
			h.mutex.Unlock()

		case c := <-h.unregister:
			h.mutex.Lock()
			if h.clients[c] {
				delete(h.clients, c)
				close(c.send)
			}
			h.mutex.Unlock()

		case msg := <-h.broadcast:
			h.mutex.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					h.logger.Debug("Client too slow, dropping connection", "request_id", c.requestID)
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// Shutdown closes every client connection and stops the hub.
func (h *Hub) Shutdown() {
	h.stopOnce.Do(func() { close(h.shutdown) })
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// readPump discards client messages and detects disconnects.
func (h *Hub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.shutdown:
		}
		if err := c.conn.Close(); err != nil {
			h.logger.Debug("Error closing connection in readPump", "request_id", c.requestID, "error", err)
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		h.logger.Error("Failed to set read deadline", "request_id", c.requestID, "error", err)
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("WebSocket unexpected close", "request_id", c.requestID, "error", err)
			}
			return
		}
	}
}

// writePump writes queued messages and pings to the connection.
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Debug("Write failed, closing connection", "request_id", c.requestID, "error", err)
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.logger.Debug("Ping failed, closing connection", "request_id", c.requestID, "error", err)
				return
			}
		}
	}
}
