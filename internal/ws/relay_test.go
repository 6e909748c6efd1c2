package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func startRelay(t *testing.T) (*httptest.Server, *Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := NewHub()
	manager := NewManager(hub, nil, nil)

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		uid, _ := strconv.ParseUint(c.Query("user"), 10, 64)
		c.Set("userId", uid)
		c.Set("username", "user-"+c.Query("user"))
		manager.WebSocketConnect(c)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, hub
}

func dialRelay(t *testing.T, srv *httptest.Server, userID uint64) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?user=" + strconv.FormatUint(userID, 10)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) ServerMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg ServerMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func joinDocument(t *testing.T, conn *websocket.Conn, docID uint64) {
	t.Helper()
	if err := conn.WriteJSON(ClientMessage{Type: TypeJoinDocument, DocID: docID}); err != nil {
		t.Fatalf("write join: %v", err)
	}
	if ack := readMessage(t, conn); ack.Type != TypeJoined || ack.DocID != docID {
		t.Fatalf("join ack = %+v", ack)
	}
}

func expectNoMessage(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var msg ServerMessage
	if err := conn.ReadJSON(&msg); err == nil {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestRelay_DeltaReachesPeerNotSender(t *testing.T) {
	srv, _ := startRelay(t)
	a := dialRelay(t, srv, 1)
	b := dialRelay(t, srv, 2)
	joinDocument(t, a, 7)
	joinDocument(t, b, 7)

	delta := json.RawMessage(`{"retain":5,"insert":"x"}`)
	if err := a.WriteJSON(ClientMessage{Type: TypeSendChanges, DocID: 7, Delta: delta}); err != nil {
		t.Fatalf("write send-changes: %v", err)
	}

	msg := readMessage(t, b)
	if msg.Type != TypeReceiveChanges {
		t.Fatalf("Type = %q, want %q", msg.Type, TypeReceiveChanges)
	}
	if string(msg.Delta) != string(delta) {
		t.Fatalf("Delta = %s, want %s", msg.Delta, delta)
	}

	expectNoMessage(t, a)
}

func TestRelay_LoneEditorNoEcho(t *testing.T) {
	srv, _ := startRelay(t)
	a := dialRelay(t, srv, 1)
	joinDocument(t, a, 1)

	if err := a.WriteJSON(ClientMessage{Type: TypeSendChanges, DocID: 1, Delta: json.RawMessage(`{"insert":"hi"}`)}); err != nil {
		t.Fatalf("write: %v", err)
	}
	expectNoMessage(t, a)
}

func TestRelay_PerSenderOrderPreserved(t *testing.T) {
	srv, _ := startRelay(t)
	a := dialRelay(t, srv, 1)
	b := dialRelay(t, srv, 2)
	joinDocument(t, a, 3)
	joinDocument(t, b, 3)

	for i := 1; i <= 5; i++ {
		delta := json.RawMessage(`{"seq":` + strconv.Itoa(i) + `}`)
		if err := a.WriteJSON(ClientMessage{Type: TypeSendChanges, DocID: 3, Delta: delta}); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	for i := 1; i <= 5; i++ {
		msg := readMessage(t, b)
		var payload struct {
			Seq int `json:"seq"`
		}
		if err := json.Unmarshal(msg.Delta, &payload); err != nil {
			t.Fatalf("unmarshal delta: %v", err)
		}
		if payload.Seq != i {
			t.Fatalf("delta %d arrived at position %d", payload.Seq, i)
		}
	}
}

func TestRelay_DisconnectIsImplicitLeave(t *testing.T) {
	srv, hub := startRelay(t)
	a := dialRelay(t, srv, 1)
	b := dialRelay(t, srv, 2)
	joinDocument(t, a, 9)
	joinDocument(t, b, 9)

	// b drops without any explicit leave message.
	b.Close()
	deadline := time.Now().Add(2 * time.Second)
	for hub.MemberCount(9) != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := hub.MemberCount(9); got != 1 {
		t.Fatalf("room has %d members after disconnect, want 1", got)
	}

	// Relay still works for the remaining member; nothing targets b.
	if err := a.WriteJSON(ClientMessage{Type: TypeSendChanges, DocID: 9, Delta: json.RawMessage(`{}`)}); err != nil {
		t.Fatalf("write: %v", err)
	}
	expectNoMessage(t, a)
}
