package editor

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"collabdocs/internal/store"
)

// Catalog is the slice of the document catalog an editing session needs.
// store.Catalog satisfies it.
type Catalog interface {
	Get(ctx context.Context, docID, userID uint64) (*store.Document, error)
	Update(ctx context.Context, docID, userID uint64, upd store.DocumentUpdate) (*store.Document, error)
}

// Transport carries local deltas to the relay.
type Transport interface {
	SendChanges(docID uint64, delta json.RawMessage) error
}

type State int

const (
	StateIdle State = iota
	StateFetching
	StateEditing
	StateSaving
	StateClosed
)

type SessionOptions struct {
	// AutosaveInterval defaults to 2s when zero.
	AutosaveInterval time.Duration
	// OnSaveError is called with every failed flush; the interval keeps
	// running and the next tick retries.
	OnSaveError func(error)
}

// Session is one user's editing session on one document: the local editing
// state (title + surface), the wire hookup for deltas, and the autosave
// coordinator that flushes the full current content to the catalog.
//
// Autosave is last-write-wins: the flush overwrites the persisted record
// with this session's full content string. Two collaborators flushing
// divergent content race, and whichever lands last wins with no error to
// either side. The relay keeps their screens converged; the catalog does not.
type Session struct {
	docID  uint64
	userID uint64

	catalog   Catalog
	transport Transport
	surface   *TextSurface

	interval    time.Duration
	onSaveError func(error)

	mu                   sync.Mutex
	state                State
	title                string
	lastPersistedTitle   string
	lastPersistedContent string
	lastSaved            time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// OpenSession fetches the document and starts the autosave loop.
func OpenSession(ctx context.Context, catalog Catalog, transport Transport, docID, userID uint64, opt SessionOptions) (*Session, error) {
	interval := opt.AutosaveInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	s := &Session{
		docID:       docID,
		userID:      userID,
		catalog:     catalog,
		transport:   transport,
		interval:    interval,
		onSaveError: opt.OnSaveError,
		state:       StateFetching,
		done:        make(chan struct{}),
	}

	doc, err := catalog.Get(ctx, docID, userID)
	if err != nil {
		s.state = StateClosed
		return nil, err
	}
	s.surface = NewTextSurface(doc.Content)
	s.title = doc.Title
	s.lastPersistedTitle = doc.Title
	s.lastPersistedContent = doc.Content
	s.state = StateEditing

	loopCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.autosaveLoop(loopCtx)
	return s, nil
}

func (s *Session) Surface() *TextSurface { return s.surface }

func (s *Session) Content() string { return s.surface.Content() }

func (s *Session) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

func (s *Session) SetTitle(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.title = title
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) LastSaved() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSaved
}

// Insert edits the local surface and puts the delta on the wire.
func (s *Session) Insert(pos int, text string) error {
	delta, err := s.surface.Insert(pos, text)
	if err != nil {
		return err
	}
	return s.sendDelta(delta)
}

func (s *Session) Delete(pos, count int) error {
	delta, err := s.surface.Delete(pos, count)
	if err != nil {
		return err
	}
	return s.sendDelta(delta)
}

func (s *Session) sendDelta(delta json.RawMessage) error {
	if s.transport == nil {
		return nil
	}
	return s.transport.SendChanges(s.docID, delta)
}

// ApplyRemote applies a peer's relayed delta to the local surface.
func (s *Session) ApplyRemote(delta json.RawMessage) error {
	return s.surface.ApplyRemote(delta)
}

// SaveNow forces a flush on the interval's update path, skipping the dirty
// check. Wired to the title field losing focus.
func (s *Session) SaveNow(ctx context.Context) error {
	return s.flush(ctx, true)
}

func (s *Session) autosaveLoop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Runs in the loop goroutine: a hung catalog call holds up
			// the following ticks for this session, nothing else.
			if err := s.flush(ctx, false); err != nil {
				log.Printf("autosave failed (doc=%d, user=%d): %v", s.docID, s.userID, err)
			}
		}
	}
}

// flush persists {title, content} as a full overwrite when the local state
// diverged from the last persisted snapshot. On failure nothing is updated,
// so the comparison stays dirty and the next tick retries.
func (s *Session) flush(ctx context.Context, force bool) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	title := s.title
	content := s.surface.Content()
	if !force && title == s.lastPersistedTitle && content == s.lastPersistedContent {
		s.mu.Unlock()
		return nil
	}
	s.state = StateSaving
	s.mu.Unlock()

	_, err := s.catalog.Update(ctx, s.docID, s.userID, store.DocumentUpdate{
		Title:   &title,
		Content: &content,
	})

	s.mu.Lock()
	if s.state == StateSaving {
		s.state = StateEditing
	}
	if err != nil {
		s.mu.Unlock()
		if s.onSaveError != nil {
			s.onSaveError(err)
		}
		return err
	}
	// Advance the snapshot to what was flushed, not to the live surface:
	// edits typed during the save stay dirty for the next tick.
	s.lastPersistedTitle = title
	s.lastPersistedContent = content
	s.lastSaved = time.Now()
	s.mu.Unlock()
	return nil
}

// Close stops the autosave timer so nothing writes after navigation away.
// Unsaved local changes are dropped, the same as closing the tab.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	s.mu.Unlock()
	s.cancel()
	<-s.done
}
