package ws

import (
	"encoding/json"
	"sync"
)

// Hub maps joined user ids to their connection. One channel per user: a
// reconnect replaces the previous binding.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

// Add binds userID to c, returning the client it replaced, if any.
func (h *Hub) Add(userID string, c *Client) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev := h.clients[userID]
	h.clients[userID] = c
	return prev
}

// Remove unbinds userID only if it is still bound to c.
func (h *Hub) Remove(userID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == c {
		delete(h.clients, userID)
	}
}

// Send pushes an event to userID's channel. Returns false when the user is
// not connected or their buffer is full; delivery is best-effort.
func (h *Hub) Send(userID string, ev Envelope) bool {
	h.mu.RLock()
	c, ok := h.clients[userID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return false
	}
	return c.enqueue(b)
}

// Connected reports whether userID currently holds a channel.
func (h *Hub) Connected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
