package events

import (
	"context"
	"sync"
)

// ChatEvent is a lifecycle notification pushed to sidebar listeners:
// chat.created, chat.deleted, chat.title.updated, message.added.
type ChatEvent struct {
	Type    string         `json:"type"`
	ChatID  string         `json:"chat_id,omitempty"`
	Ts      string         `json:"ts"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Broker fans chat events out to all subscribers. Delivery is best-effort;
// a slow subscriber drops events rather than blocking the publisher.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[chan ChatEvent]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subscribers: map[chan ChatEvent]struct{}{},
	}
}

func (b *Broker) Subscribe(ctx context.Context) <-chan ChatEvent {
	ch := make(chan ChatEvent, 16)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subscribers, ch)
		b.mu.Unlock()
		close(ch)
	}()

	return ch
}

func (b *Broker) Publish(event ChatEvent) {
	b.mu.RLock()
	chans := make([]chan ChatEvent, 0, len(b.subscribers))
	for ch := range b.subscribers {
		chans = append(chans, ch)
	}
	b.mu.RUnlock()

	for _, ch := range chans {
		select {
		case ch <- event:
		default:
		}
	}
}
