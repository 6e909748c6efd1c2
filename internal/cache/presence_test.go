package cache

import (
	"context"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
)

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("skip: redis not available: %v", err)
	}
	t.Cleanup(func() {
		rdb.FlushDB(context.Background())
		rdb.Close()
	})
	return rdb
}

func TestPresence_AddAndList(t *testing.T) {
	ctx := context.Background()
	p := NewRedisPresence(testRedis(t))

	if err := p.AddMember(ctx, 1, 10, "alice", time.Minute); err != nil {
		t.Fatalf("AddMember() error = %v", err)
	}
	if err := p.AddMember(ctx, 1, 11, "bob", time.Minute); err != nil {
		t.Fatalf("AddMember() error = %v", err)
	}

	members, err := p.GetAliveMembers(ctx, 1)
	if err != nil {
		t.Fatalf("GetAliveMembers() error = %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("got %d members, want 2: %v", len(members), members)
	}
}

func TestPresence_ExpiredMemberSwept(t *testing.T) {
	ctx := context.Background()
	p := NewRedisPresence(testRedis(t))

	if err := p.AddMember(ctx, 2, 10, "alice", -time.Second); err != nil {
		t.Fatalf("AddMember() error = %v", err)
	}
	members, err := p.GetAliveMembers(ctx, 2)
	if err != nil {
		t.Fatalf("GetAliveMembers() error = %v", err)
	}
	if len(members) != 0 {
		t.Fatalf("expired member still listed: %v", members)
	}
}

func TestPresence_RemoveMember(t *testing.T) {
	ctx := context.Background()
	p := NewRedisPresence(testRedis(t))

	if err := p.AddMember(ctx, 3, 10, "alice", time.Minute); err != nil {
		t.Fatalf("AddMember() error = %v", err)
	}
	if err := p.RemoveMember(ctx, 3, 10); err != nil {
		t.Fatalf("RemoveMember() error = %v", err)
	}
	members, err := p.GetAliveMembers(ctx, 3)
	if err != nil {
		t.Fatalf("GetAliveMembers() error = %v", err)
	}
	if len(members) != 0 {
		t.Fatalf("removed member still listed: %v", members)
	}
}
