package events

import (
	"encoding/json"
	"time"
)

// DeltaEvent mirrors one relayed change onto the firehose topic. The delta
// stays an opaque payload here, same as in the relay.
type DeltaEvent struct {
	EventType string          `json:"eventType"` // fixed "DELTA_RELAYED"
	DocID     uint64          `json:"docId"`
	SenderID  uint64          `json:"senderId"`
	ConnID    string          `json:"connId"`
	Delta     json.RawMessage `json:"delta"`
	RelayedAt time.Time       `json:"relayedAt"`
}
