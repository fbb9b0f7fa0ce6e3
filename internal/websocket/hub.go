package websocket

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/huudong03uet/credit-scoring/internal/events"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// Subscription binds a client to a topic key
type Subscription struct {
	Client *Client
	Topic  string
}

// Hub tracks connected clients and their topic subscriptions and fans
// ledger events out to them.
type Hub struct {
	clients       map[*Client]bool
	subscriptions map[string]map[*Client]bool
	stats         ConnectionStats

	register    chan *Client
	unregister  chan *Client
	subscribe   chan *Subscription
	unsubscribe chan *Subscription

	clock clockwork.Clock
	log   *logrus.Entry
	mu    sync.RWMutex

	stop     chan struct{}
	stopOnce sync.Once
}

func NewHub(clock clockwork.Clock, log *logrus.Entry) *Hub {
	return &Hub{
		clients:       make(map[*Client]bool),
		subscriptions: make(map[string]map[*Client]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		subscribe:     make(chan *Subscription),
		unsubscribe:   make(chan *Subscription),
		clock:         clock,
		log:           log.WithField("component", "websocket"),
		stop:          make(chan struct{}),
		stats:         ConnectionStats{LastUpdate: clock.Now()},
	}
}

// Run serves hub requests until Stop is called
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		case sub := <-h.subscribe:
			h.subscribeClient(sub)
		case sub := <-h.unsubscribe:
			h.unsubscribeClient(sub)
		case <-h.stop:
			return
		}
	}
}

// Register hands a client to the hub. It is a no-op once the hub stopped.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.stop:
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.stop:
	}
}

func (h *Hub) Subscribe(c *Client, topic string) {
	select {
	case h.subscribe <- &Subscription{Client: c, Topic: topic}:
	case <-h.stop:
	}
}

func (h *Hub) Unsubscribe(c *Client, topic string) {
	select {
	case h.unsubscribe <- &Subscription{Client: c, Topic: topic}:
	case <-h.stop:
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true
	h.stats.TotalConnections++
	h.stats.ActiveConnections++
	h.stats.LastUpdate = h.clock.Now()

	h.log.WithFields(logrus.Fields{
		"client": client.ID,
		"active": h.stats.ActiveConnections,
	}).Debug("Client registered")
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(client)
}

// removeLocked drops client and its subscriptions. h.mu must be held.
func (h *Hub) removeLocked(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	client.closeSend()
	h.stats.ActiveConnections--
	h.stats.LastUpdate = h.clock.Now()

	for topic, clients := range h.subscriptions {
		if _, subscribed := clients[client]; subscribed {
			delete(clients, client)
			h.stats.TotalSubscriptions--
			if len(clients) == 0 {
				delete(h.subscriptions, topic)
			}
		}
	}

	h.log.WithFields(logrus.Fields{
		"client": client.ID,
		"active": h.stats.ActiveConnections,
	}).Debug("Client unregistered")
}

func (h *Hub) subscribeClient(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.clients[sub.Client] {
		return
	}
	if h.subscriptions[sub.Topic] == nil {
		h.subscriptions[sub.Topic] = make(map[*Client]bool)
	}
	if !h.subscriptions[sub.Topic][sub.Client] {
		h.subscriptions[sub.Topic][sub.Client] = true
		h.stats.TotalSubscriptions++
		h.stats.LastUpdate = h.clock.Now()
	}
}

func (h *Hub) unsubscribeClient(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.subscriptions[sub.Topic]
	if !ok || !clients[sub.Client] {
		return
	}
	delete(clients, sub.Client)
	h.stats.TotalSubscriptions--
	h.stats.LastUpdate = h.clock.Now()
	if len(clients) == 0 {
		delete(h.subscriptions, sub.Topic)
	}
}

// Dispatch delivers a ledger event to every client subscribed to all
// events or to the event's user. Clients that cannot keep up are dropped.
func (h *Hub) Dispatch(event events.Event) {
	message := Message{
		Type:      MessageTypeEvent,
		Topic:     TopicEvents,
		User:      event.User,
		Data:      event,
		Timestamp: h.clock.Now(),
	}
	data, err := json.Marshal(message)
	if err != nil {
		h.log.WithError(err).WithField("event", event.Type).Error("Failed to encode event")
		return
	}

	h.mu.RLock()
	targets := make(map[*Client]bool)
	for client := range h.subscriptions[TopicEvents] {
		targets[client] = true
	}
	if event.User != "" {
		for client := range h.subscriptions[userTopic(strings.ToLower(event.User))] {
			targets[client] = true
		}
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	var sent int64
	var slow []*Client
	for client := range targets {
		if client.enqueue(data) {
			sent++
		} else {
			slow = append(slow, client)
		}
	}

	h.mu.Lock()
	for _, client := range slow {
		h.log.WithField("client", client.ID).Warn("Dropping slow websocket client")
		h.removeLocked(client)
	}
	h.stats.MessagesSent += sent
	h.stats.LastUpdate = h.clock.Now()
	h.mu.Unlock()
}

func (h *Hub) Stats() ConnectionStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.stats
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) SubscriptionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	count := 0
	for _, clients := range h.subscriptions {
		count += len(clients)
	}
	return count
}

// Stop ends Run and disconnects every client
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)

		h.mu.Lock()
		clients := make([]*Client, 0, len(h.clients))
		for client := range h.clients {
			clients = append(clients, client)
		}
		h.clients = make(map[*Client]bool)
		h.subscriptions = make(map[string]map[*Client]bool)
		h.stats.ActiveConnections = 0
		h.stats.TotalSubscriptions = 0
		h.mu.Unlock()

		// WritePump sends the close frame once Send is closed
		for _, client := range clients {
			client.closeSend()
		}
	})
}
