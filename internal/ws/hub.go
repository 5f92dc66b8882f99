package ws

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// ErrTooManyConnections is returned by Hub.Add once the limit is reached.
var ErrTooManyConnections = errors.New("too many connections")

type client struct {
	id   string
	conn *websocket.Conn
	hub  *Hub
	send chan []byte
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.hub.Remove(c.id)
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// Hub tracks the open instrument connections and owns their write side.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*client
	maxConns int
	log      *slog.Logger
}

// NewHub creates a hub. maxConns <= 0 means unlimited.
func NewHub(maxConns int, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		clients:  make(map[string]*client),
		maxConns: maxConns,
		log:      log,
	}
}

// Add registers conn under id and starts its write pump.
func (h *Hub) Add(id string, conn *websocket.Conn) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.maxConns > 0 && len(h.clients) >= h.maxConns {
		return ErrTooManyConnections
	}
	c := &client{id: id, conn: conn, hub: h, send: make(chan []byte, 64)}
	h.clients[id] = c
	go c.writePump()
	return nil
}

// Remove unregisters id and closes its connection once queued frames are
// written.
func (h *Hub) Remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(c.send)
	}
}

// Send queues msg for one connection. A connection that cannot keep up is
// dropped.
func (h *Hub) Send(id string, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("ws marshal", "error", err)
		return
	}
	h.mu.RLock()
	c, ok := h.clients[id]
	if !ok {
		h.mu.RUnlock()
		return
	}
	select {
	case c.send <- data:
		h.mu.RUnlock()
	default:
		h.mu.RUnlock()
		h.log.Warn("ws client too slow, disconnecting", "conn_id", id)
		h.Remove(id)
	}
}

// CloseAll drops every connection.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.send)
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
