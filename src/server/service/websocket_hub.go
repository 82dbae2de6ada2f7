package service

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/tunecast/tunecast/src/server/metrics"

	"github.com/gorilla/websocket"
)

// WebSocketMessage is one frame sent to connected clients
type WebSocketMessage struct {
	// "unread_count", "ping", "pong"
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// WebSocketClient is one connected artist session
type WebSocketClient struct {
	ID       string
	UserID   int64
	Conn     *websocket.Conn
	Hub      *WebSocketHub
	Send     chan []byte
	LastPing time.Time
}

// WebSocketHub fans notification frames out to connected clients. A user
// may hold several connections (multiple tabs); all of them get the frame.
type WebSocketHub struct {
	clients    map[string]*WebSocketClient
	clientsMux sync.RWMutex

	register   chan *WebSocketClient
	unregister chan *WebSocketClient

	done chan struct{}
}

// NewWebSocketHub creates the hub; call Run in a goroutine
func NewWebSocketHub() *WebSocketHub {
	return &WebSocketHub{
		clients:    make(map[string]*WebSocketClient),
		register:   make(chan *WebSocketClient, 10),
		unregister: make(chan *WebSocketClient, 10),
		done:       make(chan struct{}),
	}
}

// Run processes registrations and keepalives until Stop
func (h *WebSocketHub) Run() {
	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	for {
		select {
		case client := <-h.register:
			h.clientsMux.Lock()
			h.clients[client.ID] = client
			total := len(h.clients)
			h.clientsMux.Unlock()
			metrics.WebsocketConnections.Set(float64(total))
			log.Printf("WebSocket client registered: %s (total: %d)", client.ID, total)

		case client := <-h.unregister:
			h.clientsMux.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(client.Send)
			}
			total := len(h.clients)
			h.clientsMux.Unlock()
			metrics.WebsocketConnections.Set(float64(total))

		case <-pingTicker.C:
			h.pingClients()

		case <-h.done:
			log.Println("WebSocket hub shutting down")
			return
		}
	}
}

// Stop shuts the hub down and closes every connection
func (h *WebSocketHub) Stop() {
	close(h.done)
	h.clientsMux.Lock()
	for _, client := range h.clients {
		client.Conn.Close()
	}
	h.clientsMux.Unlock()
}

// RegisterClient adds a connection to the hub
func (h *WebSocketHub) RegisterClient(client *WebSocketClient) {
	h.register <- client
}

// UnregisterClient removes a connection from the hub
func (h *WebSocketHub) UnregisterClient(client *WebSocketClient) {
	h.unregister <- client
}

// NotifyUnreadCount pushes the user's unread message count to every one of
// their open connections. Slow clients are skipped, not waited on.
func (h *WebSocketHub) NotifyUnreadCount(userID int64, unread int) {
	frame, err := json.Marshal(WebSocketMessage{
		Type: "unread_count",
		Data: map[string]interface{}{"unread": unread},
	})
	if err != nil {
		return
	}

	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()
	for _, client := range h.clients {
		if client.UserID != userID {
			continue
		}
		select {
		case client.Send <- frame:
		default:
		}
	}
}

func (h *WebSocketHub) pingClients() {
	frame, _ := json.Marshal(WebSocketMessage{Type: "ping"})
	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()
	for _, client := range h.clients {
		select {
		case client.Send <- frame:
		default:
		}
	}
}

// ClientID builds a unique hub key for a user connection
func ClientID(userID int64, connSeq int64) string {
	return fmt.Sprintf("user-%d-%d", userID, connSeq)
}

// WritePump drains the send channel onto the wire; run per connection
func (c *WebSocketClient) WritePump() {
	defer c.Conn.Close()
	for frame := range c.Send {
		c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.Conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return
		}
	}
}

// ReadPump consumes client frames (pongs) until the connection drops
func (c *WebSocketClient) ReadPump() {
	defer func() {
		c.Hub.UnregisterClient(c)
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(4096)
	for {
		_, _, err := c.Conn.ReadMessage()
		if err != nil {
			return
		}
		c.LastPing = time.Now()
	}
}
