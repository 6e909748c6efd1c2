package ws

import (
	"encoding/json"
	"sync"
)

// Hub is the room registry: docID -> set of connections currently editing
// that document. It owns room membership exclusively; all mutation goes
// through Join/Leave. Rooms are created lazily on first join (no existence
// check against the catalog) and removed when the last member leaves.
// Purely process-local; lost on restart.
type Hub struct {
	// mu also guards each conn's joinedRoom field, so that "at most one
	// room per connection" holds atomically across a room switch.
	mu    sync.RWMutex
	rooms map[uint64]map[*Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[uint64]map[*Conn]struct{})}
}

// Join registers the connection in the room for docID. A connection is in at
// most one room: joining a new room removes it from the previous one first.
func (h *Hub) Join(docID uint64, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.joinedRoom != 0 && c.joinedRoom != docID {
		h.removeLocked(c.joinedRoom, c)
	}
	if h.rooms[docID] == nil {
		// Rooms hold connections, not user ids: one user may have several
		// tabs open and each needs its own copy of every broadcast.
		h.rooms[docID] = make(map[*Conn]struct{})
	}
	h.rooms[docID][c] = struct{}{}
	c.joinedRoom = docID
}

// Leave removes the connection from whatever room it is in. Called on
// explicit leave and on transport disconnect; both paths are identical.
func (h *Hub) Leave(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.joinedRoom == 0 {
		return
	}
	h.removeLocked(c.joinedRoom, c)
	c.joinedRoom = 0
}

func (h *Hub) removeLocked(docID uint64, c *Conn) {
	if conns, ok := h.rooms[docID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.rooms, docID)
		}
	}
}

// BroadcastChanges forwards the delta verbatim to every other connection in
// the room for docID, never back to the sender. A sender that is not joined
// to docID still relays into that room's current member set; when the room
// does not exist this is a no-op. Per-sender arrival order is preserved (one
// read loop per sender enqueues in order); there is no cross-sender ordering
// guarantee.
func (h *Hub) BroadcastChanges(docID uint64, sender *Conn, delta json.RawMessage) {
	targets := h.snapshot(docID)
	msg := ServerMessage{Type: TypeReceiveChanges, DocID: docID, Delta: delta}
	for _, c := range targets {
		if c == sender {
			continue
		}
		c.enqueue(msg)
	}
}

func (h *Hub) BroadcastPresence(docID uint64, members []PresenceMember) {
	targets := h.snapshot(docID)
	msg := ServerMessage{Type: TypePresence, DocID: docID, Members: members}
	for _, c := range targets {
		c.enqueue(msg)
	}
}

func (h *Hub) snapshot(docID uint64) []*Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns := h.rooms[docID]
	out := make([]*Conn, 0, len(conns))
	for c := range conns {
		out = append(out, c)
	}
	return out
}

// MemberCount reports the number of connections in the room, 0 when the room
// does not exist.
func (h *Hub) MemberCount(docID uint64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[docID])
}

// RoomExists reports whether a room entry is currently held for docID.
func (h *Hub) RoomExists(docID uint64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[docID]
	return ok
}
