package store

import (
	"context"
	"errors"
	"sync"

	"github.com/gofrs/uuid"

	"github.com/pumpdev/pumphouse/models"
)

// ErrNotFound is returned for any operation on an activity id that was
// never created or has been deleted
var ErrNotFound = errors.New("activity not found")

// IDFunc mints a fresh globally-unique activity id. Implementations must
// never return the same id twice.
type IDFunc func() (string, error)

// Store is durable keyed storage of activities. Replace and Delete
// against the same id are linearized; operations on distinct ids run in
// parallel.
type Store interface {
	Create(ctx context.Context, act models.Activity) (models.Activity, error)
	Get(ctx context.Context, id string) (models.Activity, error)
	Replace(ctx context.Context, id string, patch models.Activity) (models.Activity, error)
	Delete(ctx context.Context, id string) error
}

// NewObjectID mints an id for an activity object the client posted
// without one.
func NewObjectID() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	return "urn:uuid:" + id.String(), nil
}

// idLocks hands out one mutex per activity id so that read-modify-write
// cycles on the same resource serialize without blocking other ids.
type idLocks struct {
	mu    sync.Mutex
	locks map[string]*idLock
}

type idLock struct {
	sync.Mutex
	refs int
}

func newIDLocks() *idLocks {
	return &idLocks{locks: make(map[string]*idLock)}
}

// acquire locks the mutex for id, creating it on first use. The returned
// release function unlocks it and drops it once nobody holds it.
func (l *idLocks) acquire(id string) (release func()) {
	l.mu.Lock()
	lock, ok := l.locks[id]
	if !ok {
		lock = &idLock{}
		l.locks[id] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.Lock()
	return func() {
		lock.Unlock()

		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
