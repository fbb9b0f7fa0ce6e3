package websocket

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
}

// NewHandler accepts connections from allowedOrigins, or from any origin
// when the list is empty.
func NewHandler(hub *Hub, allowedOrigins []string) *Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.TrimRight(o, "/")] = true
	}
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin]
			},
		},
	}
}

// Serve upgrades the request. The client starts subscribed to the events of
// ?user=<address>, or to every event without it.
func (h *Handler) Serve(c *gin.Context) {
	topic, user := TopicEvents, c.Query("user")
	if user != "" {
		topic = TopicUser
	}
	key, ok := topicKey(topic, user)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user address", "code": "INVALID_INPUT"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.hub.log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := NewClient(conn, h.hub, uuid.NewString())
	h.hub.Register(client)
	client.mu.Lock()
	client.topics[key] = true
	client.mu.Unlock()
	h.hub.Subscribe(client, key)

	go client.WritePump()
	go client.ReadPump()
}

func (h *Handler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.hub.Stats())
}

func (h *Handler) RegisterRoutes(router gin.IRoutes) {
	router.GET("/ws/events", h.Serve)
	router.GET("/ws/stats", h.Stats)
}
