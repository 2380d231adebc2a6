// Package realtime pushes notifications to connected clients over websockets.
// The hub is an explicitly constructed dependency, injected wherever pushes
// originate; there is no process-wide singleton.
package realtime

import (
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mealora/mealora/internal/notification/domain"
)

type envelope struct {
	Event   domain.Event `json:"event"`
	Payload any          `json:"payload"`
}

// client wraps a connection with a write lock; gorilla allows one concurrent
// writer per connection.
type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) send(msg envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(msg)
}

// Hub tracks open connections keyed by recipient id. A recipient may hold
// several connections (multiple tabs, phone + web).
type Hub struct {
	log *zap.Logger

	mu      sync.RWMutex
	clients map[snowflake.ID]map[*client]struct{}
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		log:     log.Named("notification.hub"),
		clients: map[snowflake.ID]map[*client]struct{}{},
	}
}

// Register adds a connection and returns the detach func the caller runs when
// the socket closes.
func (h *Hub) Register(recipientID snowflake.ID, conn *websocket.Conn) func() {
	c := &client{conn: conn}

	h.mu.Lock()
	if h.clients[recipientID] == nil {
		h.clients[recipientID] = map[*client]struct{}{}
	}
	h.clients[recipientID][c] = struct{}{}
	h.mu.Unlock()

	h.log.Debug("client connected", zap.String("recipient_id", recipientID.String()))

	return func() {
		h.mu.Lock()
		if set := h.clients[recipientID]; set != nil {
			delete(set, c)
			if len(set) == 0 {
				delete(h.clients, recipientID)
			}
		}
		h.mu.Unlock()
	}
}

// Broadcast pushes to every open connection of the recipient. Best effort,
// at-most-once; failed writes drop the connection.
func (h *Hub) Broadcast(recipientID snowflake.ID, event domain.Event, payload any) {
	h.mu.RLock()
	set := h.clients[recipientID]
	targets := make([]*client, 0, len(set))
	for c := range set {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	msg := envelope{Event: event, Payload: payload}
	for _, c := range targets {
		if err := c.send(msg); err != nil {
			h.log.Debug("websocket write failed, dropping connection",
				zap.String("recipient_id", recipientID.String()),
				zap.Error(err),
			)
			c.conn.Close()
			h.mu.Lock()
			if set := h.clients[recipientID]; set != nil {
				delete(set, c)
			}
			h.mu.Unlock()
		}
	}
}

// Connected reports how many connections the recipient currently holds.
func (h *Hub) Connected(recipientID snowflake.ID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[recipientID])
}
