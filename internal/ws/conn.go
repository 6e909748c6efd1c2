package ws

import (
	"context"
	"log"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"collabdocs/internal/cache"
	"collabdocs/internal/events"
)

const presenceTTL = 600 * time.Second

// connSeq numbers connections for this process; the id distinguishes two
// tabs of the same user on the firehose.
var connSeq atomic.Uint64

// Conn is one client's transport handle. Lifecycle: created on upgrade,
// joins/leaves rooms through the hub, removed on disconnect (implicit leave).
type Conn struct {
	ws       *websocket.Conn
	hub      *Hub
	id       string
	userID   uint64
	username string

	// joinedRoom is the current room membership (0 = none), guarded by hub.mu.
	joinedRoom uint64

	send   chan ServerMessage
	sendMu sync.Mutex
	closed bool

	presence cache.PresenceCache
	firehose *events.Dispatcher
}

func NewConn(ws *websocket.Conn, hub *Hub, userID uint64, username string, presence cache.PresenceCache, firehose *events.Dispatcher) *Conn {
	return &Conn{
		ws:       ws,
		hub:      hub,
		id:       "conn-" + strconv.FormatUint(connSeq.Add(1), 10),
		userID:   userID,
		username: username,
		send:     make(chan ServerMessage, 32),
		presence: presence,
		firehose: firehose,
	}
}

// enqueue queues a message for the write loop, dropping it when the buffer is
// full or the connection is already closing. No acknowledgment, no replay: a
// message not deliverable now is permanently lost to this peer.
func (c *Conn) enqueue(msg ServerMessage) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

func (c *Conn) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Conn) readLoop(ctx context.Context) {
	defer func() {
		// Disconnect is an implicit leave: same transition as an explicit
		// one, so no further broadcast targets this conn.
		docID := c.currentRoom()
		c.hub.Leave(c)
		if c.presence != nil && docID != 0 {
			if err := c.presence.RemoveMember(ctx, docID, c.userID); err != nil {
				log.Printf("presence remove error (user=%d, doc=%d): %v", c.userID, docID, err)
			}
		}
		c.closeSend()
	}()

	for {
		var msg ClientMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			log.Printf("read json error (user=%d): %v", c.userID, err)
			return
		}
		switch msg.Type {
		case TypeJoinDocument:
			c.handleJoin(ctx, msg.DocID)

		case TypeSendChanges:
			// Relay keyed by the docId in the message, not by the sender's
			// joined room: an unjoined sender relays into whatever member
			// set exists for that docId, which may be empty.
			c.hub.BroadcastChanges(msg.DocID, c, msg.Delta)
			if c.firehose != nil {
				c.firehose.Publish(events.DeltaEvent{
					EventType: "DELTA_RELAYED",
					DocID:     msg.DocID,
					SenderID:  c.userID,
					ConnID:    c.id,
					Delta:     msg.Delta,
					RelayedAt: time.Now(),
				})
			}

		case TypeHeartbeat:
			c.handleHeartbeat(ctx)

		default:
			c.enqueue(ServerMessage{Type: TypeError, Content: "unknown message type"})
		}
	}
}

func (c *Conn) handleJoin(ctx context.Context, docID uint64) {
	prev := c.currentRoom()
	c.hub.Join(docID, c)
	if c.presence != nil {
		if prev != 0 && prev != docID {
			if err := c.presence.RemoveMember(ctx, prev, c.userID); err != nil {
				log.Printf("presence remove error (user=%d, doc=%d): %v", c.userID, prev, err)
			}
		}
		if err := c.presence.AddMember(ctx, docID, c.userID, c.username, presenceTTL); err != nil {
			log.Printf("presence add error (user=%d, doc=%d): %v", c.userID, docID, err)
		}
	}
	c.enqueue(ServerMessage{Type: TypeJoined, DocID: docID})
}

func (c *Conn) handleHeartbeat(ctx context.Context) {
	docID := c.currentRoom()
	if docID == 0 || c.presence == nil {
		c.enqueue(ServerMessage{Type: TypeHeartbeat})
		return
	}
	if err := c.presence.AddMember(ctx, docID, c.userID, c.username, presenceTTL); err != nil {
		log.Printf("presence refresh error (user=%d, doc=%d): %v", c.userID, docID, err)
	}
	members, err := c.presence.GetAliveMembers(ctx, docID)
	if err != nil {
		log.Printf("presence list error (doc=%d): %v", docID, err)
		return
	}
	out := make([]PresenceMember, len(members))
	for i, m := range members {
		out[i] = PresenceMember{UserID: m.UserID, Username: m.Username}
	}
	c.hub.BroadcastPresence(docID, out)
}

func (c *Conn) currentRoom() uint64 {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	return c.joinedRoom
}

func (c *Conn) writeLoop() {
	for msg := range c.send {
		_ = c.ws.WriteJSON(msg)
	}
}
