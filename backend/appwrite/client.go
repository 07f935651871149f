// Package appwrite implements the backend contract against an Appwrite-style
// REST API. Only the slice of the API the coordination layer needs is
// covered: account create, email sessions, and document CRUD.
package appwrite

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/familysync/familysync-go/backend"
	"github.com/familysync/familysync-go/domain"
	fserrors "github.com/familysync/familysync-go/errors"
)

// responseFormat pins the wire format version the payload decoding below
// expects.
const responseFormat = "1.6.0"

// SessionStore persists the session secret between processes. A mobile SDK
// keeps this in its cookie jar; the CLI keeps it in the device-local store.
type SessionStore interface {
	SessionSecret() (string, error)
	SetSessionSecret(secret string) error
	ClearSessionSecret() error
}

// Client talks to one backend project. It implements backend.Accounts and
// backend.Databases.
type Client struct {
	endpoint string
	project  string
	http     *http.Client
	sessions SessionStore
}

var (
	_ backend.Accounts  = (*Client)(nil)
	_ backend.Databases = (*Client)(nil)
)

// New creates a client for the given deployment. endpoint is the API base,
// e.g. "https://fra.cloud.appwrite.io/v1".
func New(endpoint, project string, sessions SessionStore) *Client {
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		project:  project,
		http:     &http.Client{Timeout: 30 * time.Second},
		sessions: sessions,
	}
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.endpoint + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding %s %s request: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("building %s %s request: %w", method, path, err)
	}
	req.Header.Set("X-Appwrite-Project", c.project)
	req.Header.Set("X-Appwrite-Response-Format", responseFormat)
	req.Header.Set("Content-Type", "application/json")
	if secret, err := c.sessions.SessionSecret(); err == nil && secret != "" {
		req.Header.Set("X-Appwrite-Session", secret)
	}

	log.Debug().Str("method", method).Str("path", path).Msg("backend request")

	resp, err := c.http.Do(req)
	if err != nil {
		return fserrors.NewUnknown(fmt.Sprintf("%s %s: %v", method, path, err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fserrors.NewUnknown(fmt.Sprintf("reading %s %s response: %v", method, path, err))
	}

	if resp.StatusCode >= 400 {
		var ae apiError
		_ = json.Unmarshal(raw, &ae)
		mapped := mapError(resp.StatusCode, ae)
		log.Debug().Int("status", resp.StatusCode).Str("type", ae.Type).Str("path", path).Msg("backend error")
		return mapped
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fserrors.NewDeserialization(path, err.Error())
		}
	}
	return nil
}

// mapError classifies a backend failure by its error type, falling back to
// the HTTP status.
func mapError(status int, ae apiError) error {
	switch ae.Type {
	case "user_invalid_credentials", "user_invalid_token":
		return fserrors.NewInvalidCredentials(ae.Message)
	case "general_rate_limit_exceeded":
		return fserrors.NewRateLimited()
	case "user_already_exists", "user_email_already_exists":
		return fserrors.NewDuplicateAccount(ae.Message)
	case "document_not_found", "user_not_found":
		return fserrors.ErrNotFound
	case "general_unauthorized_scope", "user_session_not_found":
		return fserrors.ErrNoSession
	}
	switch status {
	case http.StatusTooManyRequests:
		return fserrors.NewRateLimited()
	case http.StatusNotFound:
		return fserrors.ErrNotFound
	case http.StatusConflict:
		return fserrors.NewDuplicateAccount(ae.Message)
	case http.StatusUnauthorized:
		return fserrors.ErrNoSession
	default:
		return fserrors.NewUnknown(ae.Message)
	}
}

// --- Accounts ---

type accountPayload struct {
	ID           string `json:"$id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	Registration string `json:"registration"`
}

func (p accountPayload) toDomain() *domain.Account {
	reg, _ := time.Parse(time.RFC3339, p.Registration)
	return &domain.Account{ID: p.ID, Email: p.Email, Name: p.Name, Registration: reg}
}

type sessionPayload struct {
	ID       string `json:"$id"`
	UserID   string `json:"userId"`
	Provider string `json:"provider"`
	Secret   string `json:"secret"`
	Expire   string `json:"expire"`
}

func (p sessionPayload) toBackend() *backend.Session {
	exp, _ := time.Parse(time.RFC3339, p.Expire)
	return &backend.Session{
		ID:        p.ID,
		UserID:    p.UserID,
		Provider:  p.Provider,
		Secret:    p.Secret,
		ExpiresAt: exp,
	}
}

func (c *Client) Create(ctx context.Context, id, email, secret, name string) (*domain.Account, error) {
	body := map[string]any{
		"userId":   id,
		"email":    email,
		"password": secret,
		"name":     name,
	}
	var out accountPayload
	if err := c.do(ctx, http.MethodPost, "/account", nil, body, &out); err != nil {
		return nil, err
	}
	return out.toDomain(), nil
}

func (c *Client) CreateEmailSession(ctx context.Context, email, secret string) (*backend.Session, error) {
	body := map[string]any{"email": email, "password": secret}
	var out sessionPayload
	if err := c.do(ctx, http.MethodPost, "/account/sessions/email", nil, body, &out); err != nil {
		return nil, err
	}
	sess := out.toBackend()
	if sess.Secret != "" {
		if err := c.sessions.SetSessionSecret(sess.Secret); err != nil {
			return nil, fmt.Errorf("persisting session secret: %w", err)
		}
	}
	return sess, nil
}

func (c *Client) GetSession(ctx context.Context, sessionID string) (*backend.Session, error) {
	var out sessionPayload
	if err := c.do(ctx, http.MethodGet, "/account/sessions/"+url.PathEscape(sessionID), nil, nil, &out); err != nil {
		return nil, err
	}
	return out.toBackend(), nil
}

func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	if err := c.do(ctx, http.MethodDelete, "/account/sessions/"+url.PathEscape(sessionID), nil, nil, nil); err != nil {
		return err
	}
	if sessionID == backend.CurrentSession {
		if err := c.sessions.ClearSessionSecret(); err != nil {
			return fmt.Errorf("clearing session secret: %w", err)
		}
	}
	return nil
}

func (c *Client) GetCurrent(ctx context.Context) (*domain.Account, error) {
	var out accountPayload
	if err := c.do(ctx, http.MethodGet, "/account", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.toDomain(), nil
}

// --- Databases ---

func documentsPath(databaseID, collectionID string) string {
	return fmt.Sprintf("/databases/%s/collections/%s/documents",
		url.PathEscape(databaseID), url.PathEscape(collectionID))
}

func decodeDocument(raw map[string]any) (*backend.Document, error) {
	doc := &backend.Document{Fields: make(map[string]any, len(raw))}
	for k, v := range raw {
		switch k {
		case "$id":
			if s, ok := v.(string); ok {
				doc.ID = s
			}
		case "$createdAt":
			if s, ok := v.(string); ok {
				doc.CreatedAt, _ = time.Parse(time.RFC3339, s)
			}
		case "$updatedAt":
			if s, ok := v.(string); ok {
				doc.UpdatedAt, _ = time.Parse(time.RFC3339, s)
			}
		default:
			if !strings.HasPrefix(k, "$") {
				doc.Fields[k] = v
			}
		}
	}
	if doc.ID == "" {
		return nil, fserrors.NewDeserialization("$id", "missing document ID")
	}
	return doc, nil
}

func (c *Client) GetDocument(ctx context.Context, databaseID, collectionID, documentID string) (*backend.Document, error) {
	var raw map[string]any
	path := documentsPath(databaseID, collectionID) + "/" + url.PathEscape(documentID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &raw); err != nil {
		return nil, err
	}
	return decodeDocument(raw)
}

func (c *Client) CreateDocument(ctx context.Context, databaseID, collectionID, documentID string, fields map[string]any, permissions []string) (*backend.Document, error) {
	body := map[string]any{
		"documentId": documentID,
		"data":       fields,
	}
	if len(permissions) > 0 {
		body["permissions"] = permissions
	}
	var raw map[string]any
	if err := c.do(ctx, http.MethodPost, documentsPath(databaseID, collectionID), nil, body, &raw); err != nil {
		return nil, err
	}
	return decodeDocument(raw)
}

func (c *Client) UpdateDocument(ctx context.Context, databaseID, collectionID, documentID string, fields map[string]any, permissions []string) (*backend.Document, error) {
	body := map[string]any{"data": fields}
	if len(permissions) > 0 {
		body["permissions"] = permissions
	}
	var raw map[string]any
	path := documentsPath(databaseID, collectionID) + "/" + url.PathEscape(documentID)
	if err := c.do(ctx, http.MethodPatch, path, nil, body, &raw); err != nil {
		return nil, err
	}
	return decodeDocument(raw)
}

func (c *Client) ListDocuments(ctx context.Context, databaseID, collectionID string, queries []backend.Query) ([]*backend.Document, error) {
	params := url.Values{}
	for _, q := range queries {
		value, err := json.Marshal(q.Value)
		if err != nil {
			return nil, fmt.Errorf("encoding query value for %s: %w", q.Attribute, err)
		}
		params.Add("queries[]", fmt.Sprintf("equal(%q, [%s])", q.Attribute, value))
	}
	var out struct {
		Total     int              `json:"total"`
		Documents []map[string]any `json:"documents"`
	}
	if err := c.do(ctx, http.MethodGet, documentsPath(databaseID, collectionID), params, nil, &out); err != nil {
		return nil, err
	}
	docs := make([]*backend.Document, 0, len(out.Documents))
	for _, raw := range out.Documents {
		doc, err := decodeDocument(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
