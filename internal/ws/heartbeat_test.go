package ws

import (
	"context"
	"sync"
	"testing"
	"time"

	"collabdocs/internal/cache"
)

// fakePresence is an in-memory cache.PresenceCache; TTLs are ignored.
type fakePresence struct {
	mu    sync.Mutex
	rooms map[uint64]map[uint64]string
}

func newFakePresence() *fakePresence {
	return &fakePresence{rooms: make(map[uint64]map[uint64]string)}
}

func (f *fakePresence) AddMember(ctx context.Context, docID, userID uint64, username string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rooms[docID] == nil {
		f.rooms[docID] = make(map[uint64]string)
	}
	f.rooms[docID][userID] = username
	return nil
}

func (f *fakePresence) RemoveMember(ctx context.Context, docID, userID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rooms[docID], userID)
	return nil
}

func (f *fakePresence) GetAliveMembers(ctx context.Context, docID uint64) ([]cache.PresenceMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []cache.PresenceMember
	for uid, name := range f.rooms[docID] {
		out = append(out, cache.PresenceMember{UserID: uid, Username: name})
	}
	return out, nil
}

func TestHeartbeatBroadcastsPresenceToRoom(t *testing.T) {
	hub := NewHub()
	presence := newFakePresence()
	a := NewConn(nil, hub, 1, "alice", presence, nil)
	b := NewConn(nil, hub, 2, "bob", presence, nil)

	ctx := context.Background()
	a.handleJoin(ctx, 4)
	b.handleJoin(ctx, 4)
	drain(a) // joined acks
	drain(b)

	a.handleHeartbeat(ctx)

	for _, c := range []*Conn{a, b} {
		msgs := drain(c)
		if len(msgs) != 1 || msgs[0].Type != TypePresence {
			t.Fatalf("user %d got %v, want one presence message", c.userID, msgs)
		}
		if len(msgs[0].Members) != 2 {
			t.Fatalf("presence lists %d members, want 2: %v", len(msgs[0].Members), msgs[0].Members)
		}
		seen := map[uint64]string{}
		for _, m := range msgs[0].Members {
			seen[m.UserID] = m.Username
		}
		if seen[1] != "alice" || seen[2] != "bob" {
			t.Fatalf("members = %v", seen)
		}
	}
}

func TestHeartbeatOutsideRoomRepliesDirectly(t *testing.T) {
	hub := NewHub()
	a := NewConn(nil, hub, 1, "alice", newFakePresence(), nil)

	// Not joined anywhere: the heartbeat is acknowledged to the sender only.
	a.handleHeartbeat(context.Background())
	msgs := drain(a)
	if len(msgs) != 1 || msgs[0].Type != TypeHeartbeat {
		t.Fatalf("got %v, want a single heartbeat reply", msgs)
	}
}

func TestJoinTracksPresenceAcrossRoomSwitch(t *testing.T) {
	hub := NewHub()
	presence := newFakePresence()
	a := NewConn(nil, hub, 1, "alice", presence, nil)

	ctx := context.Background()
	a.handleJoin(ctx, 1)
	a.handleJoin(ctx, 2)

	old, _ := presence.GetAliveMembers(ctx, 1)
	if len(old) != 0 {
		t.Fatalf("previous room still lists %v after switch", old)
	}
	cur, _ := presence.GetAliveMembers(ctx, 2)
	if len(cur) != 1 || cur[0].UserID != 1 {
		t.Fatalf("current room lists %v, want user 1", cur)
	}
}
