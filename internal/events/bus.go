package events

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

const subscriberBuffer = 64

// Bus is an in-process fan-out. A slow subscriber loses events instead of
// stalling publishers.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	log    *logrus.Entry
}

func NewBus(log *logrus.Entry) *Bus {
	return &Bus{subs: make(map[int]chan Event), log: log}
}

func (b *Bus) Publish(_ context.Context, event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.log.WithFields(logrus.Fields{"subscriber": id, "event": event.Type}).Warn("Subscriber buffer full, dropping event")
		}
	}
	return nil
}

// Subscribe delivers events to handler until ctx is cancelled.
func (b *Bus) Subscribe(ctx context.Context, handler func(Event)) error {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	go func() {
		defer func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-ch:
				handler(event)
			}
		}
	}()
	return nil
}
