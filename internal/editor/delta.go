package editor

// Delta is the editor-format change description. Decoding lives entirely in
// this package: the relay and the firehose move deltas around as raw bytes.

type Kind string

const (
	KindRetain Kind = "retain"
	KindInsert Kind = "insert"
	KindDelete Kind = "delete"
)

type Op struct {
	Kind  Kind           `json:"kind"`
	Count int            `json:"count,omitempty"` // retain/delete length
	Text  string         `json:"text,omitempty"`  // insert payload
	Attrs map[string]any `json:"attrs,omitempty"` // formatting (bold, color, ...)
}

type Delta []Op
