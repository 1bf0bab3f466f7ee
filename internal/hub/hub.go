package hub

import (
	"sync"

	"github.com/weiawesome/sync-party/pkg/log"
)

// Hub tracks live clients so they can be closed on shutdown.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID()] = c
	h.mu.Unlock()

	l := log.L()
	l.Debug().Str(log.FieldConnID, c.ID()).Str(log.FieldUserID, c.principal.ID).Msg("client registered")
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c.ID())
	h.mu.Unlock()

	l := log.L()
	l.Debug().Str(log.FieldConnID, c.ID()).Msg("client unregistered")
}

// Count returns the number of live clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll closes every client.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Close()
	}
}
