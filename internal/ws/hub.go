// Package ws implements the presence and delivery channel: one long-lived
// WebSocket per client tab, a hub mapping user ids to their open
// connections, and fan-out of message.new, message.read and broadcast.new
// events. Presence is ephemeral; the store remains the source of truth.
package ws

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/escolalink/messaging-platform/internal/audience"
	"github.com/escolalink/messaging-platform/internal/model"
	"github.com/escolalink/messaging-platform/pkg/logger"
	"github.com/escolalink/messaging-platform/pkg/metrics"
)

// delivery is one unit of fan-out work. UserID targets a single user's
// connections; Filtered deliveries go to every connection whose profile
// passes the audience filter.
type delivery struct {
	UserID   string
	Filtered bool
	Audience model.Audience
	Payload  []byte
}

// Hub owns the userID -> connections map. A single goroutine (Run) owns
// all map mutations, so register, unregister and fan-out never race.
type Hub struct {
	logger *logger.Logger

	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	deliver    chan delivery
	done       chan struct{}

	running atomic.Bool
}

// NewHub creates a hub. Call Run in its own goroutine before serving
// connections.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		logger:     log,
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliver:    make(chan delivery, 256),
		done:       make(chan struct{}),
	}
}

// Run processes registrations and deliveries until Stop is called.
func (h *Hub) Run() {
	h.running.Store(true)
	defer h.running.Store(false)

	for {
		select {
		case c := <-h.register:
			if _, ok := h.clients[c.profile.ID]; !ok {
				h.clients[c.profile.ID] = make(map[*Client]bool)
			}
			h.clients[c.profile.ID][c] = true
			metrics.WSConnectionsActive.Inc()
			h.logger.Info("client connected",
				zap.String("user_id", c.profile.ID),
				zap.Int("connections", len(h.clients[c.profile.ID])),
			)

		case c := <-h.unregister:
			h.drop(c)

		case d := <-h.deliver:
			if d.Filtered {
				h.fanOut(d)
			} else {
				h.sendToUser(d.UserID, d.Payload)
			}

		case <-h.done:
			for _, conns := range h.clients {
				for c := range conns {
					close(c.done)
				}
			}
			h.clients = make(map[string]map[*Client]bool)
			return
		}
	}
}

// Stop closes every connection's send channel and ends Run.
func (h *Hub) Stop() {
	close(h.done)
}

// Running reports whether the hub loop is active, for readiness checks.
func (h *Hub) Running() bool {
	return h.running.Load()
}

// Register associates a connection with its user.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// Unregister removes a connection. Safe to call more than once.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// SendToUser enqueues payload for every open connection of userID. Users
// with no open connection are skipped; they reconcile via pull.
func (h *Hub) SendToUser(userID string, payload []byte) {
	select {
	case h.deliver <- delivery{UserID: userID, Payload: payload}:
	case <-h.done:
	}
}

// Broadcast enqueues payload for every connection whose registered profile
// passes the audience filter for aud.
func (h *Hub) Broadcast(aud model.Audience, payload []byte) {
	select {
	case h.deliver <- delivery{Filtered: true, Audience: aud, Payload: payload}:
	case <-h.done:
	}
}

func (h *Hub) sendToUser(userID string, payload []byte) {
	for c := range h.clients[userID] {
		h.push(c, payload)
	}
}

func (h *Hub) fanOut(d delivery) {
	for _, conns := range h.clients {
		for c := range conns {
			if !audience.Relevant(d.Audience, c.profile) {
				continue
			}
			h.push(c, d.Payload)
		}
	}
}

// push hands the payload to the client's writer. A client whose buffer is
// full is dropped rather than blocking the hub; it will reconnect and
// re-fetch.
func (h *Hub) push(c *Client, payload []byte) {
	select {
	case c.send <- payload:
	default:
		metrics.DeliveryFailures.Inc()
		h.logger.Warn("dropping slow client", zap.String("user_id", c.profile.ID))
		h.drop(c)
	}
}

// drop detaches a client by closing its done channel. send is left open:
// the read pump may still be queueing error envelopes on it, and closing
// it out from under that send would panic.
func (h *Hub) drop(c *Client) {
	conns, ok := h.clients[c.profile.ID]
	if !ok {
		return
	}
	if _, ok := conns[c]; !ok {
		return
	}
	delete(conns, c)
	close(c.done)
	if len(conns) == 0 {
		delete(h.clients, c.profile.ID)
	}
	metrics.WSConnectionsActive.Dec()
}
