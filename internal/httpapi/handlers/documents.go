package handlers

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"collabdocs/internal/store"
	"collabdocs/internal/user"
)

// Documents serves the catalog CRUD surface. The relay does not go through
// here; autosave flushes land on Update.
type Documents struct {
	catalog   store.Catalog
	snapshots *store.SnapshotStore
	userDB    *sql.DB
}

func NewDocuments(catalog store.Catalog, snapshots *store.SnapshotStore, userDB *sql.DB) *Documents {
	return &Documents{catalog: catalog, snapshots: snapshots, userDB: userDB}
}

func (h *Documents) Register(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
	rg.POST("/:id/collaborators", h.AddCollaborator)
}

func docIDParam(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document id"})
		return 0, false
	}
	return id, true
}

func (h *Documents) List(c *gin.Context) {
	userID := c.GetUint64("userId")
	docs, err := h.catalog.ListForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list documents failed"})
		return
	}
	if docs == nil {
		docs = []store.Document{}
	}
	c.JSON(http.StatusOK, docs)
}

func (h *Documents) Get(c *gin.Context) {
	userID := c.GetUint64("userId")
	docID, ok := docIDParam(c)
	if !ok {
		return
	}
	doc, err := h.catalog.Get(c.Request.Context(), docID, userID)
	if err != nil {
		if errors.Is(err, store.ErrDocumentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get document failed"})
		return
	}
	c.JSON(http.StatusOK, doc)
}

type createReq struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (h *Documents) Create(c *gin.Context) {
	userID := c.GetUint64("userId")
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	doc, err := h.catalog.Create(c.Request.Context(), userID, req.Title, req.Content)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create document failed"})
		return
	}
	c.JSON(http.StatusCreated, doc)
}

func (h *Documents) Update(c *gin.Context) {
	userID := c.GetUint64("userId")
	docID, ok := docIDParam(c)
	if !ok {
		return
	}
	var upd store.DocumentUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	doc, err := h.catalog.Update(c.Request.Context(), docID, userID, upd)
	if err != nil {
		if errors.Is(err, store.ErrDocumentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update document failed"})
		return
	}
	// Save history row, best effort; a failure never fails the update.
	if h.snapshots != nil && upd.Content != nil {
		if err := h.snapshots.SaveDocumentSnapshot(c.Request.Context(), docID, userID, *upd.Content); err != nil {
			log.Printf("snapshot save failed (doc=%d): %v", docID, err)
		}
	}
	c.JSON(http.StatusOK, doc)
}

func (h *Documents) Delete(c *gin.Context) {
	userID := c.GetUint64("userId")
	docID, ok := docIDParam(c)
	if !ok {
		return
	}
	if err := h.catalog.Delete(c.Request.Context(), docID, userID); err != nil {
		if errors.Is(err, store.ErrDocumentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete document failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "document deleted"})
}

type addCollaboratorReq struct {
	Email string `json:"email"`
}

func (h *Documents) AddCollaborator(c *gin.Context) {
	userID := c.GetUint64("userId")
	docID, ok := docIDParam(c)
	if !ok {
		return
	}
	var req addCollaboratorReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	u, err := user.GetUserByEmail(c.Request.Context(), h.userDB, req.Email)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup user failed"})
		return
	}

	doc, err := h.catalog.AddCollaborator(c.Request.Context(), docID, userID, u.ID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrDocumentNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		case errors.Is(err, store.ErrAlreadyCollaborator):
			c.JSON(http.StatusBadRequest, gin.H{"error": "user is already a collaborator"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "add collaborator failed"})
		}
		return
	}
	c.JSON(http.StatusOK, doc)
}
