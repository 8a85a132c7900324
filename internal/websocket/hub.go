package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/dukerupert/ayudame/internal/model"
)

// Message is a realtime notification about a request. Type is
// "<entity>_<action>", e.g. request_accepted.
type Message struct {
	Type      string         `json:"type"`
	Entity    string         `json:"entity"`
	Action    string         `json:"action"`
	ID        string         `json:"id,omitempty"`
	Status    model.Status   `json:"status,omitempty"`
	Request   *model.Request `json:"request,omitempty"`
	RatedUser string         `json:"ratedUid,omitempty"`
}

// RequestEvent describes a lifecycle change of r. A nil r only carries the id.
func RequestEvent(action, id string, r *model.Request) Message {
	msg := Message{
		Type:    "request_" + action,
		Entity:  "request",
		Action:  action,
		ID:      id,
		Request: r,
	}
	if r != nil {
		msg.Status = r.Status
	}
	return msg
}

// RatingPrompt asks the receiving user to rate ratedUserID for requestID.
func RatingPrompt(requestID, ratedUserID string) Message {
	return Message{
		Type:      "rating_prompt",
		Entity:    "rating",
		Action:    "prompt",
		ID:        requestID,
		RatedUser: ratedUserID,
	}
}

// Hub tracks connected clients by user and fans messages out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger.With("component", "websocket"),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client and closes its send channel. Calling it
// twice is harmless.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Broadcast sends msg to every connected client.
func (h *Hub) Broadcast(msg Message) {
	data, ok := h.marshal(msg)
	if !ok {
		return
	}
	h.fanout(msg.Type, func(*Client) []byte { return data })
}

// SendTo sends msg only to connections opened by the given users.
func (h *Hub) SendTo(msg Message, userIDs ...string) {
	to := recipients(userIDs)
	if len(to) == 0 {
		return
	}
	data, ok := h.marshal(msg)
	if !ok {
		return
	}
	h.fanout(msg.Type, func(c *Client) []byte {
		if to[c.userID] {
			return data
		}
		return nil
	})
}

// Publish sends private to connections of the given users and public to
// every other connection, so each client gets exactly one of the two.
func (h *Hub) Publish(public, private Message, userIDs ...string) {
	to := recipients(userIDs)
	pub, ok := h.marshal(public)
	if !ok {
		return
	}
	priv, ok := h.marshal(private)
	if !ok {
		return
	}
	h.fanout(public.Type, func(c *Client) []byte {
		if to[c.userID] {
			return priv
		}
		return pub
	})
}

func recipients(userIDs []string) map[string]bool {
	to := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		if id != "" {
			to[id] = true
		}
	}
	return to
}

func (h *Hub) marshal(msg Message) ([]byte, bool) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal message", "type", msg.Type, "error", err)
		return nil, false
	}
	return data, true
}

// fanout queues pick(c) on every client; a nil result skips the client.
func (h *Hub) fanout(msgType string, pick func(*Client) []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	dropped := 0
	for c := range h.clients {
		data := pick(c)
		if data == nil {
			continue
		}
		select {
		case c.send <- data:
		default:
			// Slow client: drop rather than block the caller.
			dropped++
		}
	}
	if dropped > 0 {
		h.logger.Warn("dropped message for slow clients", "type", msgType, "clients", dropped)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
