// Package websocket streams ledger events to browser clients.
package websocket

import "time"

type MessageType string

const (
	MessageTypeSubscribe   MessageType = "subscribe"
	MessageTypeUnsubscribe MessageType = "unsubscribe"
	MessageTypePing        MessageType = "ping"
	MessageTypePong        MessageType = "pong"
	MessageTypeEvent       MessageType = "event"
	MessageTypeError       MessageType = "error"
)

// Topic names. TopicUser subscriptions are keyed per address.
const (
	TopicEvents = "events"
	TopicUser   = "user"
)

// Message is the envelope of every frame in both directions.
type Message struct {
	Type      MessageType `json:"type"`
	Topic     string      `json:"topic,omitempty"`
	User      string      `json:"user,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

type ErrorMessage struct {
	Type      MessageType `json:"type"`
	Error     string      `json:"error"`
	Code      int         `json:"code"`
	Timestamp time.Time   `json:"timestamp"`
}

type ConnectionStats struct {
	TotalConnections   int64     `json:"total_connections"`
	ActiveConnections  int64     `json:"active_connections"`
	TotalSubscriptions int64     `json:"total_subscriptions"`
	MessagesSent       int64     `json:"messages_sent"`
	LastUpdate         time.Time `json:"last_update"`
}

func userTopic(user string) string {
	return TopicUser + ":" + user
}
