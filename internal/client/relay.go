package client

import (
	"encoding/json"
	"log"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"collabdocs/internal/ws"
)

// Relay is the client end of the delta channel: one persistent websocket to
// the relay process. Satisfies editor.Transport.
type Relay struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	onChanges  func(docID uint64, delta json.RawMessage)
	onPresence func(docID uint64, members []ws.PresenceMember)

	done chan struct{}
}

type RelayOptions struct {
	// OnChanges receives every relayed peer delta, in per-sender order.
	OnChanges func(docID uint64, delta json.RawMessage)
	// OnPresence receives room member updates.
	OnPresence func(docID uint64, members []ws.PresenceMember)
}

// DialRelay connects to the server's /ws endpoint. baseURL is the HTTP base
// (http://host:port); the token rides in the query because browsers cannot
// set headers on a websocket handshake and the server accepts both.
func DialRelay(baseURL, token string, opt RelayOptions) (*Relay, error) {
	url := "ws" + strings.TrimPrefix(strings.TrimRight(baseURL, "/"), "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	r := &Relay{
		conn:       conn,
		onChanges:  opt.OnChanges,
		onPresence: opt.OnPresence,
		done:       make(chan struct{}),
	}
	go r.readLoop()
	return r, nil
}

func (r *Relay) readLoop() {
	defer close(r.done)
	for {
		var msg ws.ServerMessage
		if err := r.conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case ws.TypeReceiveChanges:
			if r.onChanges != nil {
				r.onChanges(msg.DocID, msg.Delta)
			}
		case ws.TypePresence:
			if r.onPresence != nil {
				r.onPresence(msg.DocID, msg.Members)
			}
		case ws.TypeError:
			log.Printf("relay error: %s", msg.Content)
		}
	}
}

func (r *Relay) write(msg ws.ClientMessage) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return r.conn.WriteJSON(msg)
}

// JoinDocument enters the room for docID, leaving any previous room.
func (r *Relay) JoinDocument(docID uint64) error {
	return r.write(ws.ClientMessage{Type: ws.TypeJoinDocument, DocID: docID})
}

// SendChanges forwards a local delta to room peers. Fire and forget: no
// acknowledgment comes back.
func (r *Relay) SendChanges(docID uint64, delta json.RawMessage) error {
	return r.write(ws.ClientMessage{Type: ws.TypeSendChanges, DocID: docID, Delta: delta})
}

// Heartbeat refreshes this client's presence TTL.
func (r *Relay) Heartbeat() error {
	return r.write(ws.ClientMessage{Type: ws.TypeHeartbeat})
}

// Close drops the transport; the server treats it as an implicit leave.
func (r *Relay) Close() error {
	err := r.conn.Close()
	<-r.done
	return err
}
