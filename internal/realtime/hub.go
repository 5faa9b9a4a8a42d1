package realtime

import (
	"context"
	"sync"
)

const subscriberBuffer = 16

// Hub fans events out to connection-scoped subscribers. Each connection
// owns one buffered channel; a slow consumer drops events rather than
// blocking delivery to everyone else.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]chan Envelope
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]chan Envelope)}
}

// Subscribe registers a channel for the connection and returns it. The
// channel is closed and the subscription removed when ctx ends.
func (h *Hub) Subscribe(ctx context.Context, connID string) <-chan Envelope {
	ch := make(chan Envelope, subscriberBuffer)

	h.mu.Lock()
	h.subs[connID] = ch
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		if cur, ok := h.subs[connID]; ok && cur == ch {
			delete(h.subs, connID)
			close(ch)
		}
		h.mu.Unlock()
	}()

	return ch
}

// SendTo delivers one event to a specific connection. Reports false when
// the connection is gone or its buffer is full. The read lock is held
// across the send: close only ever happens under the write lock, so the
// channel cannot be closed mid-send.
func (h *Hub) SendTo(connID string, evt Envelope) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ch, ok := h.subs[connID]
	if !ok {
		return false
	}
	select {
	case ch <- evt:
		return true
	default:
		return false
	}
}

// Broadcast fans the event out to every subscriber, dropping per slow
// connection.
func (h *Hub) Broadcast(evt Envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}
