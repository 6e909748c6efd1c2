package ws

import "encoding/json"

// Wire message types. The delta payload is opaque: the relay forwards the raw
// bytes and never decodes them; only the editing surface on the client side
// knows the format.
const (
	TypeJoinDocument   = "join-document"
	TypeSendChanges    = "send-changes"
	TypeReceiveChanges = "receive-changes"
	TypeHeartbeat      = "heartbeat"
	TypeJoined         = "joined"
	TypePresence       = "presence"
	TypeError          = "error"
)

type ClientMessage struct {
	Type  string          `json:"type"`
	DocID uint64          `json:"docId,omitempty"`
	Delta json.RawMessage `json:"delta,omitempty"`
}

type PresenceMember struct {
	UserID   uint64 `json:"userId"`
	Username string `json:"username,omitempty"`
}

type ServerMessage struct {
	Type    string           `json:"type"`
	DocID   uint64           `json:"docId,omitempty"`
	Delta   json.RawMessage  `json:"delta,omitempty"`
	Members []PresenceMember `json:"members,omitempty"`
	Content string           `json:"content,omitempty"`
}
