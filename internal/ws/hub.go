package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event is one message pushed to a session room.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewEvent marshals payload into an Event.
func NewEvent(eventType string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, Payload: raw}, nil
}

type sessionEvent struct {
	SessionID uuid.UUID
	Event     Event
	close     bool
}

// Hub fans events out to the page connections of each session.
type Hub struct {
	// Registered clients by session ID
	rooms map[uuid.UUID]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *sessionEvent
	done       chan struct{}

	logger *zap.Logger
	mu     sync.RWMutex
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *sessionEvent, 256),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run processes registrations and broadcasts until ctx is cancelled, then
// closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, clients := range h.rooms {
				for client := range clients {
					close(client.send)
				}
				delete(h.rooms, id)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.sessionID] == nil {
				h.rooms[client.sessionID] = make(map[*Client]bool)
			}
			h.rooms[client.sessionID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(client)
			h.mu.Unlock()

		case ev := <-h.broadcast:
			h.deliver(ev)
		}
	}
}

func (h *Hub) deliver(ev *sessionEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.rooms[ev.SessionID]
	if ev.close {
		for client := range clients {
			h.removeLocked(client)
		}
		return
	}

	message, err := json.Marshal(ev.Event)
	if err != nil {
		h.logger.Error("marshal ws event", zap.String("type", ev.Event.Type), zap.Error(err))
		return
	}
	for client := range clients {
		select {
		case client.send <- message:
		default:
			// Slow reader; drop the connection, the page reconnects and
			// receives a fresh snapshot.
			h.removeLocked(client)
		}
	}
}

func (h *Hub) removeLocked(client *Client) {
	clients, ok := h.rooms[client.sessionID]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.sessionID)
	}
}

func (h *Hub) enqueue(ev *sessionEvent) {
	select {
	case h.broadcast <- ev:
	case <-h.done:
	default:
		h.logger.Warn("ws broadcast queue full, dropping event",
			zap.Stringer("session_id", ev.SessionID), zap.String("type", ev.Event.Type))
	}
}

// BroadcastToSession queues event for every connection of a session. It
// never blocks; events are dropped when the hub is stopped or saturated.
func (h *Hub) BroadcastToSession(sessionID uuid.UUID, event Event) {
	h.enqueue(&sessionEvent{SessionID: sessionID, Event: event})
}

// CloseSession disconnects every client of a session.
func (h *Hub) CloseSession(sessionID uuid.UUID) {
	h.enqueue(&sessionEvent{SessionID: sessionID, close: true})
}

// ClientCount returns the number of connections open for a session.
func (h *Hub) ClientCount(sessionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionID])
}
