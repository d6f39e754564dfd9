package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/flowkeep/flowkeep/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // Same-origin requests have no Origin header
		}
		for _, prefix := range []string{"http://localhost", "http://127.0.0.1", "https://localhost", "https://127.0.0.1"} {
			if len(origin) >= len(prefix) && origin[:len(prefix)] == prefix {
				return true
			}
		}
		logger.WarnC(logger.CategoryAPI, "rejected websocket from disallowed origin", "origin", origin)
		return false
	},
}

// WSEvent represents an event sent to WebSocket clients.
type WSEvent struct {
	Type      string      `json:"type"`
	Timestamp string      `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// WSClient is one connected WebSocket client, subscribed to a single
// execution's event stream.
type WSClient struct {
	conn        *websocket.Conn
	send        chan []byte
	hub         *WSHub
	executionID string
}

// WSHub manages WebSocket connections and routes execution events to the
// clients watching that execution.
type WSHub struct {
	clients    map[*WSClient]bool
	broadcast  chan routedEvent
	register   chan *WSClient
	unregister chan *WSClient
	mu         sync.RWMutex
}

// routedEvent pairs a WSEvent with the execution it belongs to.
type routedEvent struct {
	executionID string
	event       WSEvent
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub() *WSHub {
	return &WSHub{
		clients:    make(map[*WSClient]bool),
		broadcast:  make(chan routedEvent, 256),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
	}
}

// Run starts the hub's main loop. Call in a goroutine; it blocks until ctx
// is cancelled.
func (h *WSHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			logger.DebugC(logger.CategoryAPI, "websocket client connected", "executionId", client.executionID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			logger.DebugC(logger.CategoryAPI, "websocket client disconnected", "executionId", client.executionID)

		case routed := <-h.broadcast:
			data, err := json.Marshal(routed.event)
			if err != nil {
				continue
			}
			h.mu.Lock()
			for client := range h.clients {
				if client.executionID != routed.executionID {
					continue
				}
				select {
				case client.send <- data:
				default:
					// Client too slow, drop
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast routes an event to every client watching executionID.
func (h *WSHub) Broadcast(executionID, eventType string, data interface{}) {
	routed := routedEvent{
		executionID: executionID,
		event: WSEvent{
			Type:      eventType,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Data:      data,
		},
	}
	select {
	case h.broadcast <- routed:
	default:
		// Channel full, drop event
	}
}

// HandleWebSocket upgrades GET /api/executions/{executionId}/stream to a
// WebSocket delivering that execution's checkpoints as they commit.
func (h *WSHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	executionID := r.PathValue("executionId")
	if executionID == "" {
		badRequest(w, r, "execution id is required")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.ErrorC(logger.CategoryAPI, "websocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		conn:        conn,
		send:        make(chan []byte, 256),
		hub:         h,
		executionID: executionID,
	}

	h.register <- client

	go client.writePump()
	go client.readPump()
}

// --- Client methods ---

func (c *WSClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
	}
}

func (c *WSClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Drain queued messages
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte("\n"))
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
