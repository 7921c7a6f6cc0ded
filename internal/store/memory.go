package store

import (
	"context"
	"sync"
	"time"

	"github.com/Joel-Projects/modlogd/internal/models"
)

// InMemoryStore implements Store in memory, used when no database is
// configured and throughout the tests
type InMemoryStore struct {
	mu      sync.RWMutex
	actions map[string]models.ModAction
}

// NewInMemoryStore creates a new in-memory store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		actions: make(map[string]models.ModAction),
	}
}

// UpsertAction inserts if absent, leaves an existing row untouched, and
// reports whether the write was a fresh insert
func (s *InMemoryStore) UpsertAction(ctx context.Context, a *models.ModAction) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.actions[a.ID]; exists {
		a.QueryAction = models.QueryUpdate
		return false, nil
	}

	a.QueryAction = models.QueryInsert
	s.actions[a.ID] = *a
	return true, nil
}

// RecentIDs lists ids of actions created since the given time
func (s *InMemoryStore) RecentIDs(ctx context.Context, since time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, a := range s.actions {
		if !a.CreatedUTC.Before(since) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Get returns a stored action, used by tests to inspect persisted rows
func (s *InMemoryStore) Get(id string) (models.ModAction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.actions[id]
	return a, ok
}

// Len returns the number of stored rows
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.actions)
}

// Health always succeeds for the in-memory store
func (s *InMemoryStore) Health(ctx context.Context) error {
	return nil
}
