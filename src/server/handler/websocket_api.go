package handler

import (
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/tunecast/tunecast/src/server/middleware"
	"github.com/tunecast/tunecast/src/server/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Auth happens via the bearer token before the upgrade; same-origin
	// checks don't apply to token-authenticated API clients
	CheckOrigin: func(r *http.Request) bool { return true },
}

var connSeq int64

// WebSocketHandler upgrades authenticated clients onto the notification hub
type WebSocketHandler struct {
	Hub *service.WebSocketHub
}

// Connect upgrades the request and pumps frames until the client drops
func (h *WebSocketHandler) Connect(c *gin.Context) {
	user := middleware.GetUser(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("⚠️ WebSocket upgrade failed for user %d: %v", user.ID, err)
		return
	}

	client := &service.WebSocketClient{
		ID:       service.ClientID(user.ID, atomic.AddInt64(&connSeq, 1)),
		UserID:   user.ID,
		Conn:     conn,
		Hub:      h.Hub,
		Send:     make(chan []byte, 16),
		LastPing: time.Now(),
	}

	h.Hub.RegisterClient(client)
	go client.WritePump()
	go client.ReadPump()
}
