// Package presence delivers lifecycle broadcasts to the websocket clients
// connected to each session's room. Delivery is best-effort: a slow or dead
// client is dropped, never allowed to block the mutation path.
package presence

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/debashish17/Riverside/internal/observability"
)

// EventUserJoined is the socket-level room-join notification; its payload is
// the joining client's socket id, not a membership fact.
const EventUserJoined = "user-joined"

type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Hub tracks connected clients per session room and fans events out to them.
// It implements the lifecycle Notifier.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[int64]map[*Client]struct{}
	metrics *observability.Metrics
}

func NewHub(metrics *observability.Metrics) *Hub {
	return &Hub{
		rooms:   make(map[int64]map[*Client]struct{}),
		metrics: metrics,
	}
}

// Broadcast sends an event to every client in the session's room. Payloads
// are full authoritative snapshots; ordering between concurrent broadcasts is
// deliberately unspecified.
func (h *Hub) Broadcast(sessionID int64, event string, payload any) {
	h.send(sessionID, event, payload, nil)
}

// broadcastFrom sends to everyone in the room except the originating client.
func (h *Hub) broadcastFrom(origin *Client, event string, payload any) {
	h.send(origin.sessionID, event, payload, origin)
}

func (h *Hub) send(sessionID int64, event string, payload any, skip *Client) {
	data, err := json.Marshal(envelope{Event: event, Data: payload})
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("marshal broadcast")
		return
	}

	h.mu.RLock()
	room := h.rooms[sessionID]
	clients := make([]*Client, 0, len(room))
	for c := range room {
		if c != skip {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- data:
		default:
			// Client can't keep up; drop it rather than block the caller.
			h.unregister(c)
		}
	}
	log.Debug().Int64("session_id", sessionID).Str("event", event).Int("clients", len(clients)).Msg("broadcast")
}

// RoomSize reports how many clients are connected to the session's room.
func (h *Hub) RoomSize(sessionID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionID])
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	room, ok := h.rooms[c.sessionID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[c.sessionID] = room
	}
	room[c] = struct{}{}
	h.mu.Unlock()

	h.metrics.ConnOpened()
	log.Info().Int64("session_id", c.sessionID).Str("socket_id", c.socketID).Str("user", c.user.Username).Msg("socket joined room")
	h.broadcastFrom(c, EventUserJoined, c.socketID)
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	room, ok := h.rooms[c.sessionID]
	if ok {
		if _, present := room[c]; !present {
			h.mu.Unlock()
			return
		}
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, c.sessionID)
		}
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	c.closeOnce.Do(func() { close(c.send) })
	h.metrics.ConnClosed()
	log.Info().Int64("session_id", c.sessionID).Str("socket_id", c.socketID).Msg("socket left room")
}
