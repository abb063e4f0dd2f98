// Package session tracks in-flight icon batches. A session exists only for
// the duration of one fetch loop; nothing is persisted.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hellooo-cards/iconbridge/internal/common/cnst"
)

// Meta holds the immutable description of one batch request.
type Meta struct {
	ID        string        `json:"id"`
	Accounts  []string      `json:"accounts"`
	Platform  cnst.Platform `json:"platform"`
	CreatedAt time.Time     `json:"created_at"`
}

// Registry manages the lifecycle and lookup of active sessions. Entries are
// inserted when a batch request is accepted and removed once the result has
// been relayed back.
type Registry interface {
	// Register stores a new session.
	Register(ctx context.Context, meta *Meta) error

	// Get retrieves an active session by ID.
	Get(ctx context.Context, id string) (*Meta, error)

	// Unregister removes a session by ID.
	Unregister(ctx context.Context, id string) error

	// List returns all currently active sessions.
	List(ctx context.Context) ([]*Meta, error)
}

// ErrSessionNotFound is returned when a session is not found
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionExists is returned on a duplicate session ID.
var ErrSessionExists = errors.New("session already exists")

// NewID allocates a fresh correlation token. It only needs to be opaque and
// unique enough to match a result to its request.
func NewID() string {
	return uuid.NewString()
}
