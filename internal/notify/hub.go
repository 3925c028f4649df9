// Package notify pushes live badge events to connected members. Delivery is
// best-effort: the durable record is the notification row, and badge state
// can always be recomputed from the unseen-count query.
package notify

import (
	"encoding/json"
	"log"
	"sync"
)

// Event is one frame pushed to a member's open connections.
type Event struct {
	Type      string `json:"type"`
	BoardID   string `json:"boardId,omitempty"`
	ThreadID  string `json:"threadId,omitempty"`
	MessageID string `json:"messageId,omitempty"`
}

const (
	EventNewMessage = "new_message"
)

// Hub tracks the open connections of each member.
type Hub struct {
	mu      sync.Mutex
	members map[string]map[*Client]bool
}

func NewHub() *Hub {
	return &Hub{members: map[string]map[*Client]bool{}}
}

func (h *Hub) Join(memberID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.members[memberID] == nil {
		h.members[memberID] = map[*Client]bool{}
	}
	h.members[memberID][client] = true
	client.memberID = memberID
}

func (h *Hub) Leave(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.members[client.memberID]
	if clients == nil {
		return
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.members, client.memberID)
	}
	client.memberID = ""
}

// Push sends the event to every open connection of the member. Sends are
// non-blocking: a client with a full buffer misses the frame rather than
// stalling the caller.
func (h *Hub) Push(memberID string, event Event) {
	frame, err := json.Marshal(event)
	if err != nil {
		log.Printf("notify: marshal event: %v", err)
		return
	}

	h.mu.Lock()
	clients := make([]*Client, 0, len(h.members[memberID]))
	for client := range h.members[memberID] {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		select {
		case client.Send <- frame:
		default:
		}
	}
}
