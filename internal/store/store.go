// Package store defines the persistence interface for the traildig server.
package store

import (
	"context"

	"github.com/traildig/traildig-server/internal/domain"
)

// Store defines the interface for all persistence operations.
type Store interface {
	// Lifecycle
	Close() error
	Ping(ctx context.Context) error
	SchemaVersion(ctx context.Context) (int, error)

	// InTx runs fn inside a single transaction. The transaction commits when fn
	// returns nil and rolls back otherwise, so a failed write persists nothing.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	// Users
	CreateUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) error
	ListUsers(ctx context.Context) ([]*domain.User, error)
	CountUsers(ctx context.Context) (int, error)

	// Auth sessions
	CreateAuthSession(ctx context.Context, session *domain.AuthSession) error
	GetAuthSession(ctx context.Context, id string) (*domain.AuthSession, error)
	GetAuthSessionByRefreshToken(ctx context.Context, tokenHash string) (*domain.AuthSession, error)
	UpdateAuthSession(ctx context.Context, session *domain.AuthSession) error
	DeleteAuthSession(ctx context.Context, id string) error
	DeleteExpiredAuthSessions(ctx context.Context) (int, error)

	// Work sessions
	GetWorkSession(ctx context.Context, id string) (*domain.WorkSession, error)
	ListWorkSessions(ctx context.Context, filter WorkSessionFilter) ([]*domain.WorkSession, error)
	DeleteWorkSession(ctx context.Context, id string) error

	// Tags
	GetTag(ctx context.Context, id string) (*domain.Tag, error)
	ListTags(ctx context.Context, ownerID string) ([]*domain.Tag, error)
	CreateTag(ctx context.Context, tag *domain.Tag) error
	UpdateTag(ctx context.Context, tag *domain.Tag) error
	DeleteTag(ctx context.Context, id string) error
}

// Tx is the transactional view used when a work session and its tag
// attachments must change together.
type Tx interface {
	GetWorkSession(ctx context.Context, id string) (*domain.WorkSession, error)
	CreateWorkSession(ctx context.Context, ws *domain.WorkSession) error
	UpdateWorkSession(ctx context.Context, ws *domain.WorkSession) error
	SetWorkSessionTags(ctx context.Context, workSessionID string, tagIDs []string) error

	// GetTagsByNames returns the owner's tags whose names are in names, keyed by name.
	GetTagsByNames(ctx context.Context, ownerID string, names []string) (map[string]*domain.Tag, error)
	CreateTag(ctx context.Context, tag *domain.Tag) error
}

// WorkSessionFilter narrows ListWorkSessions. Results are always newest first.
type WorkSessionFilter struct {
	OwnerID string
	// IDs restricts results to these sessions, e.g. search hits. Nil means no restriction;
	// an empty non-nil slice matches nothing.
	IDs []string
	// TagName restricts results to sessions carrying the owner's tag with this name.
	TagName string
	Limit   int
	Offset  int
}
