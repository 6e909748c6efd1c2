package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"collabdocs/internal/store"
)

var ErrUnauthorized = errors.New("unauthorized")

// API is an HTTP client for the server's catalog and auth endpoints. It
// satisfies editor.Catalog, so an editing session can run against a remote
// server the same way it runs against an in-process store.
type API struct {
	baseURL string
	http    *http.Client
	token   string

	// collapses concurrent fetches of the same document into one request
	sf singleflight.Group
}

func NewAPI(baseURL string) *API {
	return &API{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Token returns the access token obtained by Login, for the ws handshake.
func (a *API) Token() string { return a.token }

type loginResp struct {
	AccessToken string `json:"accessToken"`
	User        struct {
		ID uint64 `json:"id"`
	} `json:"user"`
}

func (a *API) Login(ctx context.Context, username, password string) (uint64, error) {
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return 0, ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("login: unexpected status %d", resp.StatusCode)
	}
	var lr loginResp
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return 0, err
	}
	a.token = lr.AccessToken
	return lr.User.ID, nil
}

func (a *API) docURL(docID uint64) string {
	return a.baseURL + "/api/documents/" + strconv.FormatUint(docID, 10)
}

func (a *API) do(req *http.Request, out any) error {
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		if out == nil {
			return nil
		}
		return json.NewDecoder(resp.Body).Decode(out)
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return store.ErrDocumentNotFound
	default:
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
}

// Get fetches a document. The userID argument exists to satisfy
// editor.Catalog; the server resolves the acting user from the token.
func (a *API) Get(ctx context.Context, docID, userID uint64) (*store.Document, error) {
	v, err, _ := a.sf.Do(strconv.FormatUint(docID, 10), func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.docURL(docID), nil)
		if err != nil {
			return nil, err
		}
		var doc store.Document
		if err := a.do(req, &doc); err != nil {
			return nil, err
		}
		return &doc, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*store.Document), nil
}

func (a *API) Update(ctx context.Context, docID, userID uint64, upd store.DocumentUpdate) (*store.Document, error) {
	body, err := json.Marshal(upd)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, a.docURL(docID), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	var doc store.Document
	if err := a.do(req, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (a *API) List(ctx context.Context) ([]store.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/api/documents", nil)
	if err != nil {
		return nil, err
	}
	var docs []store.Document
	if err := a.do(req, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (a *API) Create(ctx context.Context, title, content string) (*store.Document, error) {
	body, _ := json.Marshal(map[string]string{"title": title, "content": content})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/documents", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	var doc store.Document
	if err := a.do(req, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}
