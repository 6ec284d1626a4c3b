package server

import (
	"sync"
)

// Hub tracks which clients are joined to which room.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Client]struct{})}
}

// Join adds c to its room.
func (h *Hub) Join(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[c.roomID]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[c.roomID] = members
	}
	members[c] = struct{}{}
}

// Leave removes c from its room. Empty rooms are dropped.
func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[c.roomID]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, c.roomID)
	}
}

// Count returns the number of clients in a room.
func (h *Hub) Count(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// Broadcast queues a frame for every client in the room except sender.
// Clients whose queue is full are disconnected.
func (h *Hub) Broadcast(roomID string, sender *Client, f frame) {
	var slow []*Client

	h.mu.RLock()
	for c := range h.rooms[roomID] {
		if c == sender {
			continue
		}
		if !c.enqueue(f) {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	// Closing outside the lock; the read pump then calls Leave.
	for _, c := range slow {
		c.log.Warnw("send queue full, disconnecting client")
		c.close()
	}
}

// CloseAll disconnects every client.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	var all []*Client
	for id, members := range h.rooms {
		for c := range members {
			all = append(all, c)
		}
		delete(h.rooms, id)
	}
	h.mu.Unlock()

	for _, c := range all {
		c.close()
	}
}
