// README: In-process pub/sub hub; backs the live stream when Redis is not configured.
package fanout

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"
)

// Subscriber delivers the encoded envelopes published on a set of channels
// until the returned stop function is called or ctx ends.
type Subscriber interface {
	Listen(ctx context.Context, channels ...string) (<-chan []byte, func())
}

const hubBuffer = 64

type hubClient struct {
	send     chan []byte
	channels map[string]bool
}

type Hub struct {
	mu      sync.RWMutex
	clients map[*hubClient]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*hubClient]struct{})}
}

func (h *Hub) Publish(_ context.Context, channel, event string, payload any) error {
	env, err := NewEnvelope(channel, event, payload, time.Now())
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.channels[channel] {
			continue
		}
		select {
		case c.send <- data:
		default:
			log.Printf("fanout hub: dropping %s on %s for slow subscriber", event, channel)
		}
	}
	return nil
}

func (h *Hub) Listen(ctx context.Context, channels ...string) (<-chan []byte, func()) {
	c := &hubClient{send: make(chan []byte, hubBuffer), channels: make(map[string]bool, len(channels))}
	for _, ch := range channels {
		c.channels[ch] = true
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.clients, c)
			h.mu.Unlock()
			close(c.send)
		})
	}
	go func() {
		<-ctx.Done()
		stop()
	}()
	return c.send, stop
}
