// Package store provides storage backends for routine records.
//
// This file implements the in-memory store used by tests and development runs.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/lifekit/routines/internal/models"
)

// InMemoryStore is a thread-safe in-memory store for routines.
type InMemoryStore struct {
	mu       sync.RWMutex
	routines map[string]models.Routine
}

// NewInMemoryStore creates a new in-memory routine store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{routines: make(map[string]models.Routine)}
}

// CreateRoutine persists a new routine in memory.
func (s *InMemoryStore) CreateRoutine(r models.Routine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	r.CreatedAt = now
	r.UpdatedAt = now
	s.routines[r.ID] = r
	return nil
}

// GetRoutine retrieves a routine by id.
func (s *InMemoryStore) GetRoutine(id string) (*models.Routine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.routines[id]
	if !ok {
		return nil, ErrRoutineNotFound
	}
	return &r, nil
}

// ListRoutinesByOwner returns every routine owned by the given user.
func (s *InMemoryStore) ListRoutinesByOwner(ownerID string) ([]models.Routine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Routine
	for _, r := range s.routines {
		if r.OwnerID == ownerID {
			out = append(out, r)
		}
	}
	sortByCreatedAt(out)
	return out, nil
}

// ListRoutinesByOwnerAndKind returns the owner's routines with the given trigger kind.
func (s *InMemoryStore) ListRoutinesByOwnerAndKind(ownerID string, kind models.TriggerKind) ([]models.Routine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Routine
	for _, r := range s.routines {
		if r.OwnerID == ownerID && r.TriggerKind == kind {
			out = append(out, r)
		}
	}
	sortByCreatedAt(out)
	return out, nil
}

// ListActiveRoutinesByKind returns every active routine with the given trigger kind.
func (s *InMemoryStore) ListActiveRoutinesByKind(kind models.TriggerKind) ([]models.Routine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Routine
	for _, r := range s.routines {
		if r.IsActive && r.TriggerKind == kind {
			out = append(out, r)
		}
	}
	sortByCreatedAt(out)
	return out, nil
}

// UpdateRoutine replaces a routine's mutable fields.
func (s *InMemoryStore) UpdateRoutine(r models.Routine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.routines[r.ID]
	if !ok {
		return ErrRoutineNotFound
	}
	// Preserve the original creation timestamp
	r.CreatedAt = existing.CreatedAt
	r.UpdatedAt = time.Now()
	s.routines[r.ID] = r
	return nil
}

// MarkRoutineFired records a successful fire; older timestamps are ignored.
func (s *InMemoryStore) MarkRoutineFired(id string, firedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.routines[id]
	if !ok {
		return ErrRoutineNotFound
	}
	if r.LastFiredAt != nil && r.LastFiredAt.After(firedAt) {
		return nil
	}
	t := firedAt
	r.LastFiredAt = &t
	r.UpdatedAt = time.Now()
	s.routines[id] = r
	return nil
}

// DeleteRoutine removes a routine by id.
func (s *InMemoryStore) DeleteRoutine(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.routines[id]; !ok {
		return ErrRoutineNotFound
	}
	delete(s.routines, id)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }

// sortByCreatedAt gives list results a stable order matching the SQL backends.
func sortByCreatedAt(routines []models.Routine) {
	sort.Slice(routines, func(i, j int) bool {
		if routines[i].CreatedAt.Equal(routines[j].CreatedAt) {
			return routines[i].ID < routines[j].ID
		}
		return routines[i].CreatedAt.Before(routines[j].CreatedAt)
	})
}
