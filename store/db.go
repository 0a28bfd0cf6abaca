package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/pumpdev/pumphouse/models"
)

type activityRow struct {
	bun.BaseModel `bun:"table:activities"`

	ID        string `bun:"id,pk"`
	ActorID   string `bun:"actor_id,notnull"`
	Verb      string `bun:"verb,notnull"`
	Published string `bun:"published,notnull"`
	Updated   string `bun:"updated,notnull"`
	Doc       []byte `bun:"doc,notnull"`
}

// DBStore keeps activities in a bun-managed table. The typed columns
// exist for lookups; the doc column holds the full JSON document so
// extension fields round-trip untouched.
type DBStore struct {
	newID IDFunc
	db    *bun.DB
	perID *idLocks
}

// NewDBStore instantiates an activity store backed by db. Ids are minted
// by newID.
func NewDBStore(newID IDFunc, db *bun.DB) *DBStore {
	return &DBStore{
		newID: newID,
		db:    db,
		perID: newIDLocks(),
	}
}

// Init creates the activities table if it does not exist yet.
func (s *DBStore) Init(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*activityRow)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("could not create activities table: %w", err)
	}
	return nil
}

func toRow(act models.Activity) (*activityRow, error) {
	doc, err := json.Marshal(act)
	if err != nil {
		return nil, fmt.Errorf("could not marshal activity: %w", err)
	}
	return &activityRow{
		ID:        act.ID,
		ActorID:   act.Actor.ID,
		Verb:      act.Verb,
		Published: act.Published,
		Updated:   act.Updated,
		Doc:       doc,
	}, nil
}

func fromRow(row *activityRow) (models.Activity, error) {
	var act models.Activity
	if err := json.Unmarshal(row.Doc, &act); err != nil {
		return models.Activity{}, fmt.Errorf("could not unmarshal stored activity %s: %w", row.ID, err)
	}
	return act, nil
}

// Create validates act, assigns its id and timestamps, binds the object
// id if the client left it out, and persists the result.
func (s *DBStore) Create(ctx context.Context, act models.Activity) (models.Activity, error) {
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

	row, err := toRow(stored)
	if err != nil {
		return models.Activity{}, err
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return models.Activity{}, fmt.Errorf("could not store activity: %w", err)
	}
	return stored, nil
}

// Get returns the activity with the given id.
func (s *DBStore) Get(ctx context.Context, id string) (models.Activity, error) {
	row := new(activityRow)
	err := s.db.NewSelect().
		Model(row).
		Where("id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Activity{}, ErrNotFound
	}
	if err != nil {
		return models.Activity{}, fmt.Errorf("could not load activity: %w", err)
	}
	return fromRow(row)
}

// Replace merges patch into the stored activity under the per-id lock,
// so a racing delete cannot be undone by a stale read and updated never
// regresses.
func (s *DBStore) Replace(ctx context.Context, id string, patch models.Activity) (models.Activity, error) {
	release := s.perID.acquire(id)
	defer release()

	existing, err := s.Get(ctx, id)
	if err != nil {
		return models.Activity{}, err
	}

	updated := models.ApplyUpdate(existing, patch, time.Now())
	row, err := toRow(updated)
	if err != nil {
		return models.Activity{}, err
	}

	res, err := s.db.NewUpdate().
		Model(row).
		WherePK().
		Exec(ctx)
	if err != nil {
		return models.Activity{}, fmt.Errorf("could not update activity: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return models.Activity{}, fmt.Errorf("could not update activity: %w", err)
	}
	if affected == 0 {
		return models.Activity{}, ErrNotFound
	}
	return updated, nil
}

// Delete removes the activity with the given id.
func (s *DBStore) Delete(ctx context.Context, id string) error {
	release := s.perID.acquire(id)
	defer release()

	res, err := s.db.NewDelete().
		Model((*activityRow)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("could not delete activity: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not delete activity: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
