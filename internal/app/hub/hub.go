package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"signalhub/internal/core/contracts"
	"signalhub/internal/core/domain"
)

// Hub owns the set of live connections and fans events out to them. It
// frames every payload in the wire envelope; the core addresses targets
// purely by connection id and never sees the socket.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]contracts.Client
	log     *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]contracts.Client),
		log:     log,
	}
}

func (h *Hub) Register(c contracts.Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID()] = c
}

func (h *Hub) Unregister(c contracts.Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c.ID())
}

// SendTo delivers one event to one connection. Unknown targets are
// dropped: the recipient may have disconnected a beat ago and its own
// close handling already told whoever needs to know.
func (h *Hub) SendTo(ctx context.Context, connID string, event string, payload any) {
	h.mu.RLock()
	c := h.clients[connID]
	h.mu.RUnlock()
	if c == nil {
		return
	}
	data, err := encode(event, payload)
	if err != nil {
		h.log.ErrorContext(ctx, "hub - send to - encode failed", "event", event, "err", err)
		return
	}
	_ = c.Send(ctx, data)
}

// Broadcast delivers one event to every open connection.
func (h *Hub) Broadcast(ctx context.Context, event string, payload any) {
	data, err := encode(event, payload)
	if err != nil {
		h.log.ErrorContext(ctx, "hub - broadcast - encode failed", "event", event, "err", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		_ = c.Send(ctx, data)
	}
}

func encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(domain.Envelope{Event: event, Data: data})
}
