package store

import (
	"context"
	"sync"
	"time"

	"github.com/pumpdev/pumphouse/models"
)

// MemStore keeps activities in memory
type MemStore struct {
	newID IDFunc

	activities map[string]models.Activity
	perID      *idLocks

	sync.RWMutex
}

// NewMemStore instantiates a new in-memory activity store. Ids are
// minted by newID.
func NewMemStore(newID IDFunc) *MemStore {
	return &MemStore{
		newID:      newID,
		activities: make(map[string]models.Activity),
		perID:      newIDLocks(),
	}
}

// Create validates act, assigns its id and timestamps, binds the object
// id if the client left it out, and persists the result.
func (s *MemStore) Create(ctx context.Context, act models.Activity) (models.Activity, error) {
	if err := act.Validate(); err != nil {
		return models.Activity{}, err
	}

	id, err := s.newID()
	if err != nil {
		return models.Activity{}, err
	}

	stored := act.Clone()
	stored.ID = id
	if stored.Object.ID == "" {
		objID, err := NewObjectID()
		if err != nil {
			return models.Activity{}, err
		}
		stored.Object.ID = objID
	}
	now := models.Timestamp(time.Now())
	stored.Published = now
	stored.Updated = now

	s.Lock()
	defer s.Unlock()

	s.activities[stored.ID] = stored
	return stored.Clone(), nil
}

// Get returns the activity with the given id.
func (s *MemStore) Get(ctx context.Context, id string) (models.Activity, error) {
	s.RLock()
	defer s.RUnlock()

	act, ok := s.activities[id]
	if !ok {
		return models.Activity{}, ErrNotFound
	}
	return act.Clone(), nil
}

// Replace merges patch into the stored activity under the per-id lock,
// so a racing delete cannot be undone by a stale read and updated never
// regresses.
func (s *MemStore) Replace(ctx context.Context, id string, patch models.Activity) (models.Activity, error) {
	release := s.perID.acquire(id)
	defer release()

	s.RLock()
	existing, ok := s.activities[id]
	s.RUnlock()
	if !ok {
		return models.Activity{}, ErrNotFound
	}

	updated := models.ApplyUpdate(existing, patch, time.Now())

	s.Lock()
	s.activities[id] = updated
	s.Unlock()

	return updated.Clone(), nil
}

// Delete removes the activity with the given id.
func (s *MemStore) Delete(ctx context.Context, id string) error {
	release := s.perID.acquire(id)
	defer release()

	s.Lock()
	defer s.Unlock()

	if _, ok := s.activities[id]; !ok {
		return ErrNotFound
	}
	delete(s.activities, id)
	return nil
}
