package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"
)

// MemoryCatalog is an in-process Catalog used by tests and by the terminal
// client when pointed at a scratch workspace. Same last-write-wins semantics
// as the MySQL catalog: Update overwrites whole fields, no merge.
type MemoryCatalog struct {
	mu     sync.Mutex
	nextID uint64
	docs   map[uint64]*Document
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{nextID: 1, docs: make(map[uint64]*Document)}
}

func (c *MemoryCatalog) canAccess(doc *Document, userID uint64) bool {
	return doc.OwnerID == userID || slices.Contains(doc.CollaboratorIDs, userID)
}

func (c *MemoryCatalog) ListForUser(ctx context.Context, userID uint64) ([]Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Document
	for _, doc := range c.docs {
		if c.canAccess(doc, userID) {
			out = append(out, *doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (c *MemoryCatalog) Get(ctx context.Context, docID, userID uint64) (*Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	doc, ok := c.docs[docID]
	if !ok || !c.canAccess(doc, userID) {
		return nil, ErrDocumentNotFound
	}
	cp := *doc
	cp.CollaboratorIDs = slices.Clone(doc.CollaboratorIDs)
	return &cp, nil
}

func (c *MemoryCatalog) Create(ctx context.Context, ownerID uint64, title, content string) (*Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if title == "" {
		title = "Untitled Document"
	}
	now := time.Now()
	doc := &Document{
		ID:        c.nextID,
		Title:     title,
		Content:   content,
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	c.nextID++
	c.docs[doc.ID] = doc
	cp := *doc
	return &cp, nil
}

func (c *MemoryCatalog) Update(ctx context.Context, docID, userID uint64, upd DocumentUpdate) (*Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	doc, ok := c.docs[docID]
	if !ok || !c.canAccess(doc, userID) {
		return nil, ErrDocumentNotFound
	}
	if upd.Title != nil {
		doc.Title = *upd.Title
	}
	if upd.Content != nil {
		doc.Content = *upd.Content
	}
	doc.UpdatedAt = time.Now()
	cp := *doc
	cp.CollaboratorIDs = slices.Clone(doc.CollaboratorIDs)
	return &cp, nil
}

func (c *MemoryCatalog) Delete(ctx context.Context, docID, ownerID uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	doc, ok := c.docs[docID]
	if !ok || doc.OwnerID != ownerID {
		return ErrDocumentNotFound
	}
	delete(c.docs, docID)
	return nil
}

func (c *MemoryCatalog) AddCollaborator(ctx context.Context, docID, ownerID, collaboratorID uint64) (*Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	doc, ok := c.docs[docID]
	if !ok || doc.OwnerID != ownerID {
		return nil, ErrDocumentNotFound
	}
	if slices.Contains(doc.CollaboratorIDs, collaboratorID) {
		return nil, ErrAlreadyCollaborator
	}
	doc.CollaboratorIDs = append(doc.CollaboratorIDs, collaboratorID)
	cp := *doc
	cp.CollaboratorIDs = slices.Clone(doc.CollaboratorIDs)
	return &cp, nil
}
