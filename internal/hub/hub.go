// Package hub implements the PUB-pattern fanout used by internal/transport:
// one broadcaster, many slow-client-tolerant subscribers, with a
// configurable drop-or-kick backpressure policy. Adapted from the
// teacher's CAN-frame hub to carry generic wire frames instead.
package hub

import (
	"sync"

	"github.com/aogaki/delila2-net/internal/logging"
	"github.com/aogaki/delila2-net/internal/metrics"
)

type BackpressurePolicy int

const (
	PolicyDrop BackpressurePolicy = iota
	PolicyKick
)

// Frame is one PUB-channel message: a topic (for SUB-side filtering) and
// the wire-encoded payload.
type Frame struct {
	Topic   string
	Payload []byte
}

type Client struct {
	Out       chan Frame
	Closed    chan struct{}
	closeOnce sync.Once
}

// Close signals the client is closed (idempotent).
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.Closed)
	})
}

type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]struct{}
	OutBufSize int
	Policy     BackpressurePolicy
	component  string // label used for metrics/logging
}

// New creates a Hub with default settings, labeled component for metrics.
func New(component string) *Hub {
	return &Hub{clients: make(map[*Client]struct{}), component: component}
}

// Add registers a client with the hub.
func (h *Hub) Add(c *Client) {
	h.mu.Lock()
	prev := len(h.clients)
	h.clients[c] = struct{}{}
	cur := len(h.clients)
	h.mu.Unlock()
	if prev == 0 && cur == 1 {
		logging.L().Info("subscribers_first_connected", "component", h.component)
	}
}

// Remove unregisters a client; safe to call multiple times.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	_, existed := h.clients[c]
	if existed {
		delete(h.clients, c)
	}
	cur := len(h.clients)
	h.mu.Unlock()
	select {
	case <-c.Closed:
	default:
		c.Close()
	}
	if existed && cur == 0 {
		logging.L().Info("subscribers_last_disconnected", "component", h.component)
	}
}

// Broadcast sends a frame to all connected clients honoring the backpressure policy.
func (h *Hub) Broadcast(fr Frame) {
	clients := h.Snapshot()
	if len(clients) > 0 {
		max := 0
		sum := 0
		for _, c := range clients {
			l := len(c.Out)
			if l > max {
				max = l
			}
			sum += l
		}
		metrics.SetQueueDepth(h.component, "data", max)
		_ = sum
	}
	for _, c := range clients {
		select {
		case c.Out <- fr:
		default:
			metrics.IncSendDropped()
			if h.Policy == PolicyKick {
				c.Close() // signal writer to exit; server will Remove on disconnect
			}
		}
	}
}

// Snapshot returns a slice copy of current clients (read-only use).
func (h *Hub) Snapshot() []*Client {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	return clients
}

// Count returns the number of active clients.
func (h *Hub) Count() int { h.mu.RLock(); n := len(h.clients); h.mu.RUnlock(); return n }
