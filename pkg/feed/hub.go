package feed

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"sync"
)

// Hub keeps the set of connected renderers and fans state out to them.
type Hub struct {
	logger *log.Logger

	clients    map[*Client]bool
	dirty      chan struct{}
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex

	latestMu sync.RWMutex
	latest   []byte
}

func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Hub{
		logger:     logger,
		dirty:      make(chan struct{}, 1),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
	}
}

// Run serves registrations and broadcasts until ctx is done, then closes
// every client's send buffer.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Printf("feed: client %s registered (%s)", client.id, client.remoteAddr())
			if latest := h.Latest(); latest != nil {
				select {
				case client.send <- latest:
				default:
				}
			}

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.logger.Printf("feed: client %s unregistered", client.id)
			}
			h.mu.Unlock()

		case <-h.dirty:
			message := h.Latest()
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					h.logger.Printf("feed: client %s send buffer full, removing", client.id)
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Register adds a client. It reports false once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Latest returns the last broadcast frame, or nil before the first one.
func (h *Hub) Latest() []byte {
	h.latestMu.RLock()
	defer h.latestMu.RUnlock()
	return h.latest
}

// prime sets the frame sent to newly registered clients when nothing has
// been broadcast yet. It never replaces a broadcast frame.
func (h *Hub) prime(state any) {
	if h.Latest() != nil {
		return
	}
	message, err := marshalState(state)
	if err != nil {
		h.logger.Printf("feed: marshal state: %v", err)
		return
	}
	h.latestMu.Lock()
	if h.latest == nil {
		h.latest = message
	}
	h.latestMu.Unlock()
}

func marshalState(state any) ([]byte, error) {
	return json.Marshal(map[string]any{"type": "state", "payload": state})
}

// BroadcastState pushes a state frame to every client. It never blocks: while
// the hub is behind, frames coalesce and clients get the newest one.
func (h *Hub) BroadcastState(state any) {
	message, err := marshalState(state)
	if err != nil {
		h.logger.Printf("feed: marshal state: %v", err)
		return
	}

	h.latestMu.Lock()
	h.latest = message
	h.latestMu.Unlock()

	select {
	case h.dirty <- struct{}{}:
	default:
	}
}
