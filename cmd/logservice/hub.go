package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"logdash/internal/models"
)

// subscriberBuffer is how many events a subscriber may lag behind before
// the hub disconnects it.
const subscriberBuffer = 256

// subscriber is one live feed connection, over either transport.
type subscriber struct {
	transport string
	send      chan []byte
}

// hub fans live events out to every subscriber.
type hub struct {
	mu         sync.RWMutex
	clients    map[*subscriber]struct{}
	broadcast  chan []byte
	register   chan *subscriber
	unregister chan *subscriber
	done       chan struct{}
}

func newHub() *hub {
	return &hub{
		clients:    make(map[*subscriber]struct{}),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *subscriber),
		unregister: make(chan *subscriber),
		done:       make(chan struct{}),
	}
}

// run processes register, unregister, and broadcast events until ctx is
// done, then closes every subscriber.
func (h *hub) run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				h.removeLocked(client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
			streamSubscribers.WithLabelValues(client.transport).Inc()
			slog.Debug("live client connected", "transport", client.transport, "clients", h.clientCount())

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(client)
			h.mu.Unlock()
			slog.Debug("live client disconnected", "transport", client.transport, "clients", h.clientCount())

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Send buffer is full; disconnect the client.
					h.removeLocked(client)
					droppedSubscribersTotal.Inc()
					slog.Warn("dropping slow live client", "transport", client.transport)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *hub) removeLocked(client *subscriber) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	streamSubscribers.WithLabelValues(client.transport).Dec()
}

func (h *hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// subscribe registers a new subscriber. It reports false once the hub has
// stopped.
func (h *hub) subscribe(transport string) (*subscriber, bool) {
	client := &subscriber{transport: transport, send: make(chan []byte, subscriberBuffer)}
	select {
	case h.register <- client:
		return client, true
	case <-h.done:
		return nil, false
	}
}

func (h *hub) unsubscribe(client *subscriber) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// publish sends one event to every subscriber as its own message.
func (h *hub) publish(event models.LogEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal live event", "error", err)
		return
	}
	select {
	case h.broadcast <- data:
		publishedTotal.Inc()
	case <-h.done:
	}
}

// publish forwards access records to live subscribers when a hub is attached.
func (s *server) publish(entries []models.AccessLog) {
	if s.hub == nil {
		return
	}
	for _, e := range entries {
		s.hub.publish(e.Event())
	}
}
