// Package backend defines the Identity & Data Backend contract the
// coordination layer depends on: account creation, session creation and
// deletion, and document CRUD. Any BaaS or self-hosted auth+document service
// can sit behind these interfaces; backend/appwrite is the shipped
// implementation.
package backend

import (
	"context"
	"time"

	"github.com/familysync/familysync-go/domain"
)

// CurrentSession is the sentinel session ID for "the session attached to this
// client".
const CurrentSession = "current"

// Session describes an active backend session.
type Session struct {
	ID        string
	UserID    string
	Provider  string
	Secret    string
	ExpiresAt time.Time
}

// Accounts is the authentication surface of the backend.
type Accounts interface {
	// Create registers a new account. Fails with KindDuplicateAccount when
	// the ID or email is taken.
	Create(ctx context.Context, id, email, secret, name string) (*domain.Account, error)

	// CreateEmailSession logs in with an email/secret pair. Fails with
	// KindInvalidCredentials when the pair is rejected and KindRateLimited
	// when the backend throttles the attempt.
	CreateEmailSession(ctx context.Context, email, secret string) (*Session, error)

	// GetSession fetches a session by ID; use CurrentSession for the active
	// one. Fails with ErrNoSession when none exists.
	GetSession(ctx context.Context, sessionID string) (*Session, error)

	// DeleteSession removes a session; use CurrentSession for the active one.
	DeleteSession(ctx context.Context, sessionID string) error

	// GetCurrent returns the account behind the active session. Fails with
	// ErrNoSession when not signed in.
	GetCurrent(ctx context.Context) (*domain.Account, error)
}

// Databases is the document storage surface of the backend.
type Databases interface {
	GetDocument(ctx context.Context, databaseID, collectionID, documentID string) (*Document, error)
	CreateDocument(ctx context.Context, databaseID, collectionID, documentID string, fields map[string]any, permissions []string) (*Document, error)
	UpdateDocument(ctx context.Context, databaseID, collectionID, documentID string, fields map[string]any, permissions []string) (*Document, error)
	ListDocuments(ctx context.Context, databaseID, collectionID string, queries []Query) ([]*Document, error)
}

// Query is a document list filter. Only equality is in scope.
type Query struct {
	Attribute string
	Value     any
}

// Equal builds an equality filter on attribute.
func Equal(attribute string, value any) Query {
	return Query{Attribute: attribute, Value: value}
}
