package session

import (
	"context"
	"sort"
	"sync"
)

// InMemoryStore is a volatile Store keeping histories in a process local
// map. It is safe for concurrent access and suited for tests and the REPL.
// Returned histories are copies.
type InMemoryStore struct {
	mu       sync.RWMutex
	limit    int
	sessions map[string][]Turn
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore constructs an empty store keeping at most limit turns per
// session (DefaultLimit when limit <= 0).
func NewInMemoryStore(limit int) *InMemoryStore {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &InMemoryStore{limit: limit, sessions: make(map[string][]Turn)}
}

// Append adds turn and drops the oldest turns beyond the limit.
func (s *InMemoryStore) Append(ctx context.Context, sessionID string, turn Turn) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	turns := append(s.sessions[sessionID], cloneTurn(turn))
	if over := len(turns) - s.limit; over > 0 {
		turns = append([]Turn(nil), turns[over:]...)
	}
	s.sessions[sessionID] = turns

	return nil
}

// History returns a copy of the session's turns.
func (s *InMemoryStore) History(ctx context.Context, sessionID string) ([]Turn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	turns, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}

	out := make([]Turn, len(turns))
	for i, t := range turns {
		out[i] = cloneTurn(t)
	}
	return out, nil
}

// Delete removes the session.
func (s *InMemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// List returns the session ids in sorted order.
func (s *InMemoryStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids, nil
}

func cloneTurn(t Turn) Turn {
	t.Path = append([]string(nil), t.Path...)
	return t
}
