package surface

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/chat-monitor/backend/internal/model/chat"
)

const sendBuffer = 32

type outgoingMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

type client struct {
	id   string
	send chan outgoingMessage
}

// Hub fans chat surface notifications out to every connection of a participant.
// Sends never block: a connection that cannot keep up loses frames.
type Hub struct {
	mu       sync.RWMutex
	clients  map[chat.Identity]map[string]*client
	counters map[chat.Identity]int
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients:  make(map[chat.Identity]map[string]*client),
		counters: make(map[chat.Identity]int),
	}
}

// Surface returns the chat surface of a participant, backed by this hub.
func (h *Hub) Surface(id chat.Identity) *ParticipantSurface {
	return &ParticipantSurface{hub: h, id: id}
}

func (h *Hub) register(id chat.Identity) *client {
	c := &client{id: uuid.NewString(), send: make(chan outgoingMessage, sendBuffer)}
	h.mu.Lock()
	if h.clients[id] == nil {
		h.clients[id] = make(map[string]*client)
	}
	h.clients[id][c.id] = c
	h.mu.Unlock()
	return c
}

func (h *Hub) unregister(id chat.Identity, c *client) {
	h.mu.Lock()
	if conns, ok := h.clients[id]; ok {
		if _, ok := conns[c.id]; ok {
			delete(conns, c.id)
			close(c.send)
		}
	}
	h.mu.Unlock()
}

// Count returns the number of messages shown on a participant's surface.
func (h *Hub) Count(id chat.Identity) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.counters[id]
}

// Connections returns the number of open connections of a participant.
func (h *Hub) Connections(id chat.Identity) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[id])
}

func (h *Hub) increment(id chat.Identity) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.counters[id]++
	return h.counters[id]
}

func (h *Hub) resetCounter(id chat.Identity) {
	h.mu.Lock()
	h.counters[id] = 0
	h.mu.Unlock()
}

func (h *Hub) broadcast(id chat.Identity, msgType string, data interface{}) {
	msg := outgoingMessage{Type: msgType, Data: data, Timestamp: time.Now().UnixMilli()}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients[id] {
		select {
		case c.send <- msg:
		default:
			log.Printf("[websocket] send buffer full for %s connection %s, dropping %s", id, c.id, msgType)
		}
	}
}

// NoteSent echoes a participant's own message back to all of its connections.
func (h *Hub) NoteSent(turn chat.Turn) {
	count := h.increment(turn.Sender)
	h.broadcast(turn.Sender, "sent", map[string]any{
		"sender":   turn.Sender,
		"message":  turn.Message,
		"sequence": turn.Sequence,
		"count":    count,
	})
}

// ParticipantSurface is the chat surface of one participant.
type ParticipantSurface struct {
	hub *Hub
	id  chat.Identity
}

// DisplayIncoming shows a message from the other participant.
func (s *ParticipantSurface) DisplayIncoming(sender chat.Identity, message string) {
	count := s.hub.increment(s.id)
	s.hub.broadcast(s.id, "incoming", map[string]any{
		"sender":  sender,
		"message": message,
		"count":   count,
	})
}

// Clear wipes the displayed history.
func (s *ParticipantSurface) Clear() {
	s.hub.resetCounter(s.id)
	s.hub.broadcast(s.id, "cleared", map[string]any{"count": 0})
	log.Printf("[websocket] chat cleared for %s", s.id)
}
