// internal/store/memory.go
//
// In-memory session store.
// Sessions are ephemeral: live round state (including the cached
// decomposition) never leaves the process, and is lost on restart.
//
// Characteristics:
//   - Stores *game.Session objects keyed by ID in a map.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - Reap drops sessions idle since before a cutoff.
//   - Get returns ErrNotFound for unknown IDs.

package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robalobadob/svdguess/internal/game"
)

// ErrNotFound is returned by Get for unknown session IDs.
var ErrNotFound = errors.New("store: session not found")

// Store defines the session persistence interface.
type Store interface {
	// Save adds or replaces a session under its ID.
	Save(ctx context.Context, s *game.Session) error

	// Get retrieves a session by ID.
	Get(ctx context.Context, id string) (*game.Session, error)

	// Delete removes a session; unknown IDs are ignored.
	Delete(ctx context.Context, id string) error

	// Reap removes sessions whose last activity is before cutoff and
	// returns how many were dropped.
	Reap(ctx context.Context, cutoff time.Time) (int, error)

	// Len reports the number of stored sessions.
	Len() int
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu       sync.RWMutex             // guards sessions map
	sessions map[string]*game.Session // keyed by Session.ID()
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{sessions: make(map[string]*game.Session)}
}

func (m *memory) Save(ctx context.Context, s *game.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID()] = s
	return nil
}

func (m *memory) Get(ctx context.Context, id string) (*game.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	return nil, ErrNotFound
}

func (m *memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memory) Reap(ctx context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if s.LastActive().Before(cutoff) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

func (m *memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
