package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var (
	ErrDocumentNotFound    = errors.New("document not found")
	ErrAlreadyCollaborator = errors.New("user is already a collaborator")
)

type Document struct {
	ID              uint64    `gorm:"primaryKey" json:"id"`
	Title           string    `gorm:"size:255;not null;default:'Untitled Document'" json:"title"`
	Content         string    `gorm:"type:longtext" json:"content"`
	OwnerID         uint64    `gorm:"index;not null" json:"ownerId"`
	CollaboratorIDs []uint64  `gorm:"-" json:"collaboratorIds"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Collaborator is a row in the document/user join table.
type Collaborator struct {
	DocumentID uint64 `gorm:"primaryKey;autoIncrement:false"`
	UserID     uint64 `gorm:"primaryKey;autoIncrement:false"`
}

// DocumentUpdate carries partial updates. Pointer fields distinguish
// "not provided" (nil) from "set to empty".
type DocumentUpdate struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
}

// Catalog is the document catalog store. Get/Update require the caller to be
// owner or collaborator; Delete and AddCollaborator require the owner.
type Catalog interface {
	ListForUser(ctx context.Context, userID uint64) ([]Document, error)
	Get(ctx context.Context, docID, userID uint64) (*Document, error)
	Create(ctx context.Context, ownerID uint64, title, content string) (*Document, error)
	Update(ctx context.Context, docID, userID uint64, upd DocumentUpdate) (*Document, error)
	Delete(ctx context.Context, docID, ownerID uint64) error
	AddCollaborator(ctx context.Context, docID, ownerID, collaboratorID uint64) (*Document, error)
}

type mysqlCatalog struct {
	db *gorm.DB
}

func NewMySQLCatalog(db *gorm.DB) Catalog {
	return &mysqlCatalog{db: db}
}

// AutoMigrate creates the documents and collaborators tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Document{}, &Collaborator{})
}

// accessScope restricts a query to documents the user owns or collaborates on.
func accessScope(userID uint64) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		return tx.Where(
			"owner_id = ? OR id IN (?)",
			userID,
			tx.Session(&gorm.Session{NewDB: true}).
				Model(&Collaborator{}).
				Select("document_id").
				Where("user_id = ?", userID),
		)
	}
}

func (c *mysqlCatalog) loadCollaborators(ctx context.Context, doc *Document) error {
	var ids []uint64
	err := c.db.WithContext(ctx).
		Model(&Collaborator{}).
		Where("document_id = ?", doc.ID).
		Pluck("user_id", &ids).Error
	if err != nil {
		return err
	}
	doc.CollaboratorIDs = ids
	return nil
}

func (c *mysqlCatalog) ListForUser(ctx context.Context, userID uint64) ([]Document, error) {
	var docs []Document
	err := c.db.WithContext(ctx).
		Scopes(accessScope(userID)).
		Order("updated_at DESC").
		Find(&docs).Error
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *mysqlCatalog) Get(ctx context.Context, docID, userID uint64) (*Document, error) {
	var doc Document
	err := c.db.WithContext(ctx).
		Scopes(accessScope(userID)).
		Where("id = ?", docID).
		First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	if err := c.loadCollaborators(ctx, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *mysqlCatalog) Create(ctx context.Context, ownerID uint64, title, content string) (*Document, error) {
	if title == "" {
		title = "Untitled Document"
	}
	doc := Document{Title: title, Content: content, OwnerID: ownerID}
	if err := c.db.WithContext(ctx).Create(&doc).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *mysqlCatalog) Update(ctx context.Context, docID, userID uint64, upd DocumentUpdate) (*Document, error) {
	updates := map[string]any{}
	if upd.Title != nil {
		updates["title"] = *upd.Title
	}
	if upd.Content != nil {
		updates["content"] = *upd.Content
	}

	if len(updates) > 0 {
		res := c.db.WithContext(ctx).
			Model(&Document{}).
			Scopes(accessScope(userID)).
			Where("id = ?", docID).
			Updates(updates)
		if res.Error != nil {
			return nil, res.Error
		}
		// RowsAffected == 0 can mean either "no access" or "no change"; a
		// follow-up Get settles it and returns the fresh record either way.
	}
	return c.Get(ctx, docID, userID)
}

func (c *mysqlCatalog) Delete(ctx context.Context, docID, ownerID uint64) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND owner_id = ?", docID, ownerID).Delete(&Document{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrDocumentNotFound
		}
		return tx.Where("document_id = ?", docID).Delete(&Collaborator{}).Error
	})
}

func (c *mysqlCatalog) AddCollaborator(ctx context.Context, docID, ownerID, collaboratorID uint64) (*Document, error) {
	var doc Document
	err := c.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", docID, ownerID).
		First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}

	var count int64
	err = c.db.WithContext(ctx).
		Model(&Collaborator{}).
		Where("document_id = ? AND user_id = ?", docID, collaboratorID).
		Count(&count).Error
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrAlreadyCollaborator
	}

	row := Collaborator{DocumentID: docID, UserID: collaboratorID}
	if err := c.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, err
	}
	if err := c.loadCollaborators(ctx, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}
