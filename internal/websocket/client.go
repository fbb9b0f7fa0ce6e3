package websocket

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 512
	sendBuffer     = 256
)

// Client is one websocket connection
type Client struct {
	ID   string
	conn *websocket.Conn
	hub  *Hub
	log  *logrus.Entry

	send   chan []byte
	sendMu sync.Mutex
	closed bool

	mu     sync.RWMutex
	topics map[string]bool
}

func NewClient(conn *websocket.Conn, hub *Hub, id string) *Client {
	return &Client{
		ID:     id,
		conn:   conn,
		hub:    hub,
		log:    hub.log.WithField("client", id),
		send:   make(chan []byte, sendBuffer),
		topics: make(map[string]bool),
	}
}

// enqueue queues data without blocking. It reports false when the buffer
// is full or the client is closed.
func (c *Client) enqueue(data []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ReadPump handles inbound frames until the connection fails
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.WithError(err).Warn("WebSocket read failed")
			}
			return
		}
		c.handleMessage(message)
	}
}

// WritePump drains the send queue onto the connection and keeps it alive
func (c *Client) WritePump() {
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
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

func (c *Client) handleMessage(raw []byte) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("Invalid message format", http.StatusBadRequest)
		return
	}

	switch msg.Type {
	case MessageTypeSubscribe:
		c.handleSubscribe(msg.Topic, msg.User)
	case MessageTypeUnsubscribe:
		c.handleUnsubscribe(msg.Topic, msg.User)
	case MessageTypePing:
		c.reply(Message{Type: MessageTypePong})
	default:
		c.sendError("Unknown message type", http.StatusBadRequest)
	}
}

// topicKey resolves a subscription request to its hub key
func topicKey(topic, user string) (string, bool) {
	switch topic {
	case TopicEvents:
		return TopicEvents, true
	case TopicUser:
		if !common.IsHexAddress(user) {
			return "", false
		}
		return userTopic(strings.ToLower(common.HexToAddress(user).Hex())), true
	default:
		return "", false
	}
}

func (c *Client) handleSubscribe(topic, user string) {
	key, ok := topicKey(topic, user)
	if !ok {
		c.sendError("Invalid subscription topic", http.StatusBadRequest)
		return
	}
	c.mu.Lock()
	c.topics[key] = true
	c.mu.Unlock()

	c.hub.Subscribe(c, key)
	c.reply(Message{Type: MessageTypeSubscribe, Topic: topic, User: user})
}

func (c *Client) handleUnsubscribe(topic, user string) {
	key, ok := topicKey(topic, user)
	if !ok {
		c.sendError("Invalid subscription topic", http.StatusBadRequest)
		return
	}
	c.mu.Lock()
	delete(c.topics, key)
	c.mu.Unlock()

	c.hub.Unsubscribe(c, key)
	c.reply(Message{Type: MessageTypeUnsubscribe, Topic: topic, User: user})
}

func (c *Client) reply(msg Message) {
	msg.Timestamp = c.hub.clock.Now()
	data, _ := json.Marshal(msg)
	c.enqueue(data)
}

func (c *Client) sendError(text string, code int) {
	data, _ := json.Marshal(ErrorMessage{
		Type:      MessageTypeError,
		Error:     text,
		Code:      code,
		Timestamp: c.hub.clock.Now(),
	})
	c.enqueue(data)
}

func (c *Client) IsSubscribed(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.topics[key]
}
