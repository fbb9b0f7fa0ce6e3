package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type RedisPublisher struct {
	client *redis.Client
	stream string
}

func NewRedisPublisher(client *redis.Client, stream string) *RedisPublisher {
	return &RedisPublisher{client: client, stream: stream}
}

func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.stream, string(data)).Err()
}

type RedisSubscriber struct {
	client *redis.Client
	stream string
	log    *logrus.Entry
}

func NewRedisSubscriber(client *redis.Client, stream string, log *logrus.Entry) *RedisSubscriber {
	return &RedisSubscriber{client: client, stream: stream, log: log}
}

func (s *RedisSubscriber) Subscribe(ctx context.Context, handler func(Event)) error {
	pubsub := s.client.Subscribe(ctx, s.stream)
	// wait for the subscription to be confirmed so publish errors surface here
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return err
	}
	ch := pubsub.Channel()

	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					s.log.WithError(err).Error("Failed to unmarshal event")
					continue
				}
				handler(event)
			}
		}
	}()

	return nil
}
