// internal/realtime/hub.go
//
// Fan-out of server events to websocket clients.
// Responsibilities:
//   - Tracking connected clients by player ID and room subscriptions.
//   - Delivering room broadcasts and direct messages without ever blocking
//     the caller (slow clients lose messages, they never stall a room).
//
// Hub implements party.Gateway.

package realtime

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"
)

// Hub routes outbound events to clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	rooms   map[string]map[string]struct{}
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{
		clients: map[string]*client{},
		rooms:   map[string]map[string]struct{}{},
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
}

// unregister drops the client and all of its subscriptions.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.id] == c {
		delete(h.clients, c.id)
	}
	for roomID, members := range h.rooms {
		delete(members, c.id)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// Subscribe adds playerID to roomID's broadcasts.
func (h *Hub) Subscribe(roomID, playerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[roomID]
	if !ok {
		members = map[string]struct{}{}
		h.rooms[roomID] = members
	}
	members[playerID] = struct{}{}
}

// Unsubscribe removes playerID from roomID's broadcasts.
func (h *Hub) Unsubscribe(roomID, playerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[roomID]; ok {
		delete(members, playerID)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// Broadcast sends event to every subscriber of roomID.
func (h *Hub) Broadcast(roomID, event string, payload any) {
	msg, err := encode(event, "", payload)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("encode broadcast")
		return
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.rooms[roomID]))
	for id := range h.rooms[roomID] {
		if c, ok := h.clients[id]; ok {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.enqueue(msg)
	}
}

// Send delivers event to one player.
func (h *Hub) Send(playerID, event string, payload any) {
	h.mu.RLock()
	c, ok := h.clients[playerID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	h.reply(c, event, "", payload)
}

func (h *Hub) reply(c *client, event, id string, payload any) {
	msg, err := encode(event, id, payload)
	if err != nil {
		log.Error().Err(err).Str("event", event).Str("player", c.id).Msg("encode message")
		return
	}
	c.enqueue(msg)
}

// Stats returns (connected clients, rooms with subscribers).
func (h *Hub) Stats() (clients int, rooms int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients), len(h.rooms)
}

// Envelope is the wire format in both directions.
type Envelope struct {
	Event string          `json:"event"`
	ID    string          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Event string `json:"event"`
	ID    string `json:"id,omitempty"`
	Data  any    `json:"data"`
}

func encode(event, id string, payload any) ([]byte, error) {
	return json.Marshal(outbound{Event: event, ID: id, Data: payload})
}
