package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"collabdocs/internal/store"
)

func testRouter(t *testing.T) (*gin.Engine, *store.MemoryCatalog) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	catalog := store.NewMemoryCatalog()
	h := NewDocuments(catalog, nil, nil)

	r := gin.New()
	// Auth stub: the user id comes from a header instead of a JWT.
	docs := r.Group("/api/documents", func(c *gin.Context) {
		uid, _ := strconv.ParseUint(c.GetHeader("X-Test-User"), 10, 64)
		c.Set("userId", uid)
	})
	h.Register(docs)
	return r, catalog
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string, userID uint64) *httptest.ResponseRecorder {
	t.Helper()
	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("")
	} else {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-User", strconv.FormatUint(userID, 10))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestDocuments_CreateAndGet(t *testing.T) {
	r, _ := testRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/documents", `{"title":"Plan","content":"draft"}`, 1)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var created store.Document
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	w = doJSON(t, r, http.MethodGet, "/api/documents/"+strconv.FormatUint(created.ID, 10), "", 1)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}

	// Another user cannot see it.
	w = doJSON(t, r, http.MethodGet, "/api/documents/"+strconv.FormatUint(created.ID, 10), "", 2)
	if w.Code != http.StatusNotFound {
		t.Fatalf("get by stranger status = %d, want 404", w.Code)
	}
}

func TestDocuments_ListOrderedByUpdate(t *testing.T) {
	r, catalog := testRouter(t)
	first, _ := catalog.Create(context.Background(), 1, "first", "")
	second, _ := catalog.Create(context.Background(), 1, "second", "")

	// Touch the older one so it sorts first.
	title := "first (edited)"
	if _, err := catalog.Update(context.Background(), first.ID, 1, store.DocumentUpdate{Title: &title}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	w := doJSON(t, r, http.MethodGet, "/api/documents", "", 1)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var docs []store.Document
	if err := json.Unmarshal(w.Body.Bytes(), &docs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d documents, want 2", len(docs))
	}
	if docs[0].ID != first.ID || docs[1].ID != second.ID {
		t.Fatalf("order = [%d, %d], want [%d, %d]", docs[0].ID, docs[1].ID, first.ID, second.ID)
	}
}

func TestDocuments_PartialUpdate(t *testing.T) {
	r, catalog := testRouter(t)
	doc, _ := catalog.Create(context.Background(), 1, "Title", "content")

	w := doJSON(t, r, http.MethodPut, "/api/documents/"+strconv.FormatUint(doc.ID, 10), `{"title":"New Title"}`, 1)
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", w.Code, w.Body.String())
	}
	var got store.Document
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Title != "New Title" || got.Content != "content" {
		t.Fatalf("after update: title=%q content=%q", got.Title, got.Content)
	}
}

func TestDocuments_DeleteOwnerOnly(t *testing.T) {
	r, catalog := testRouter(t)
	doc, _ := catalog.Create(context.Background(), 1, "Mine", "")

	w := doJSON(t, r, http.MethodDelete, "/api/documents/"+strconv.FormatUint(doc.ID, 10), "", 2)
	if w.Code != http.StatusNotFound {
		t.Fatalf("delete by stranger status = %d, want 404", w.Code)
	}
	w = doJSON(t, r, http.MethodDelete, "/api/documents/"+strconv.FormatUint(doc.ID, 10), "", 1)
	if w.Code != http.StatusOK {
		t.Fatalf("delete by owner status = %d", w.Code)
	}
}

func TestDocuments_BadID(t *testing.T) {
	r, _ := testRouter(t)
	w := doJSON(t, r, http.MethodGet, "/api/documents/not-a-number", "", 1)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
