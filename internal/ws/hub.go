package ws

import (
	"sync"

	"readearn/internal/logger"
	"readearn/internal/reading"
)

// Hub tracks the websocket clients of every BFF session.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[*Client]struct{})}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.SessionID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.SessionID] = set
	}
	set[c] = struct{}{}
	wsConnections.Inc()
	logger.Debug("ws: client registered", "sid", c.SessionID, "clients", len(set))
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.SessionID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	wsConnections.Dec()
	if len(set) == 0 {
		delete(h.clients, c.SessionID)
	}
}

// Count returns the number of live sockets for sid.
func (h *Hub) Count(sid string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sid])
}

// Watching counts the sockets streaming session.
func (h *Hub) Watching(session *reading.Session) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		for c := range set {
			if c.session == session {
				n++
			}
		}
	}
	return n
}

// Total returns the number of live sockets across all sessions.
func (h *Hub) Total() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// CloseSession disconnects every socket of sid, e.g. on logout.
func (h *Hub) CloseSession(sid string) {
	h.mu.RLock()
	closing := make([]*Client, 0, len(h.clients[sid]))
	for c := range h.clients[sid] {
		closing = append(closing, c)
	}
	h.mu.RUnlock()

	for _, c := range closing {
		c.close()
	}
}
