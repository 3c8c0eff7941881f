// Package websocket streams backup run events to connected operators.
package websocket

import (
	"log/slog"
	"sync"

	"github.com/dukerupert/praxisbackup/internal/backup"
	"github.com/goccy/go-json"
)

// Message is a run notification broadcast to all clients.
type Message struct {
	Type   string `json:"type"`
	Entity string `json:"entity"`
	Action string `json:"action"`
	ID     string `json:"id,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// NewMessage creates a Message with the Type field derived from entity and action.
func NewMessage(entity, action, id string, data any) Message {
	return Message{
		Type:   entity + "_" + action,
		Entity: entity,
		Action: action,
		ID:     id,
		Data:   data,
	}
}

// EventMessage converts a runner event into a Message.
func EventMessage(e backup.Event) Message {
	switch e.Type {
	case backup.EventScheduleFinished:
		var id string
		if e.Result != nil {
			id = e.Result.ScheduleID
		}
		return NewMessage("backup_schedule", "finished", id, e.Result)
	case backup.EventRunFinished:
		return NewMessage("backup_run", "finished", "", e.Batch)
	default:
		return NewMessage("backup_run", "started", "", map[string]any{"time": e.Time})
	}
}

// Hub maintains the set of active WebSocket clients and broadcasts messages.
// It remembers the last finished run so late joiners see the current state.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	lastRun []byte
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger.With("component", "websocket"),
	}
}

// Register adds a client and queues the last backup_run_finished message,
// if any, as its first message.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	if h.lastRun != nil {
		select {
		case c.send <- h.lastRun:
		default:
		}
	}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Broadcast sends a message to all connected clients. Clients with a full
// buffer miss the message.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	h.fanOut(data)
}

// Publish broadcasts a runner event. It matches backup.EventCallback.
func (h *Hub) Publish(e backup.Event) {
	data, err := json.Marshal(EventMessage(e))
	if err != nil {
		h.logger.Error("marshal event", "type", e.Type, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if e.Type == backup.EventRunFinished {
		h.lastRun = data
	}
	h.fanOut(data)
}

// fanOut must be called with h.mu held.
func (h *Hub) fanOut(data []byte) {
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
