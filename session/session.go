package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned for unknown session ids.
var ErrNotFound = errors.New("session not found")

// DefaultLimit is the number of turns kept per session.
const DefaultLimit = 50

// Turn is one completed invocation.
type Turn struct {
	RunID    string    `json:"run_id"`
	Input    string    `json:"input"`
	Output   string    `json:"output"`
	Terminal string    `json:"terminal"`
	Path     []string  `json:"path,omitempty"`
	At       time.Time `json:"at"`
}

// Store persists turns per session.
type Store interface {
	// Append adds a turn, creating the session on first use.
	Append(ctx context.Context, sessionID string, turn Turn) error
	// History returns the turns oldest first, or ErrNotFound.
	History(ctx context.Context, sessionID string) ([]Turn, error)
	// Delete drops a session. Deleting an unknown session is not an error.
	Delete(ctx context.Context, sessionID string) error
	// List returns the known session ids in sorted order.
	List(ctx context.Context) ([]string, error)
}

// NewID returns a fresh random session id.
func NewID() string { return uuid.NewString() }
