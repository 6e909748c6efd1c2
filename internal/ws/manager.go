package ws

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"collabdocs/internal/cache"
	"collabdocs/internal/events"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || origin == "null" {
		return true
	}
	allowedPrefixes := []string{
		"http://localhost",
		"http://127.0.0.1",
		"https://localhost",
		"https://127.0.0.1",
	}
	for _, p := range allowedPrefixes {
		if strings.HasPrefix(origin, p) {
			return true
		}
	}
	return false
}}

// Manager upgrades authenticated HTTP requests into relay connections.
type Manager struct {
	hub      *Hub
	presence cache.PresenceCache
	firehose *events.Dispatcher
}

func NewManager(hub *Hub, presence cache.PresenceCache, firehose *events.Dispatcher) *Manager {
	return &Manager{hub: hub, presence: presence, firehose: firehose}
}

func (m *Manager) WebSocketConnect(c *gin.Context) {
	userID := c.GetUint64("userId")
	username := c.GetString("username")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v (origin=%s)", err, c.Request.Header.Get("Origin"))
		return
	}
	defer conn.Close()

	wsConn := NewConn(conn, m.hub, userID, username, m.presence, m.firehose)

	// Start the write loop first so anything enqueued below goes out.
	go wsConn.writeLoop()

	// Blocks until the transport drops.
	wsConn.readLoop(c.Request.Context())
}
