package editor

import (
	"encoding/json"
	"sync"
)

// TextSurface is a plain-text editing surface over a piece table. Local
// edits mutate the buffer and return the delta to put on the wire; remote
// deltas arrive as raw bytes and are decoded here and nowhere else.
type TextSurface struct {
	mu  sync.Mutex
	buf Buffer
}

func NewTextSurface(initial string) *TextSurface {
	return &TextSurface{buf: NewPieceTable(initial)}
}

func (s *TextSurface) Content() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func (s *TextSurface) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Len()
}

// Insert applies a local insert at pos and returns the encoded delta.
func (s *TextSurface) Insert(pos int, text string) (json.RawMessage, error) {
	d := Delta{}
	if pos > 0 {
		d = append(d, Op{Kind: KindRetain, Count: pos})
	}
	d = append(d, Op{Kind: KindInsert, Text: text})
	return s.applyLocal(d)
}

// Delete applies a local delete of count runes at pos and returns the
// encoded delta.
func (s *TextSurface) Delete(pos, count int) (json.RawMessage, error) {
	d := Delta{}
	if pos > 0 {
		d = append(d, Op{Kind: KindRetain, Count: pos})
	}
	d = append(d, Op{Kind: KindDelete, Count: count})
	return s.applyLocal(d)
}

func (s *TextSurface) applyLocal(d Delta) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.buf.Apply(d); err != nil {
		return nil, err
	}
	return json.Marshal(d)
}

// ApplyRemote decodes a peer's delta and applies it to the local buffer.
func (s *TextSurface) ApplyRemote(raw json.RawMessage) error {
	var d Delta
	if err := json.Unmarshal(raw, &d); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Apply(d)
}
