package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pumpdev/pumphouse/models"
)

func testIDFunc() IDFunc {
	var mu sync.Mutex
	var n int
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("https://example.com/api/activity/%d", n), nil
	}
}

func noteActivity() models.Activity {
	return models.Activity{
		Actor: models.Actor{
			ID:          "https://example.com/api/user/gerold",
			ObjectType:  "person",
			DisplayName: "gerold",
		},
		Verb: "post",
		Object: models.Object{
			ObjectType: "note",
			Extra:      map[string]interface{}{"content": "Hello, world!"},
		},
	}
}

func TestMemStoreCreateAndGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemStore(testIDFunc())

	created, err := store.Create(ctx, noteActivity())
	if err != nil {
		t.Errorf("error creating activity: %v", err)
		t.FailNow()
	}

	if created.ID == "" {
		t.Errorf("created activity has no id")
	}
	if created.Object.ID == "" {
		t.Errorf("created activity object has no id")
	}
	if created.Published == "" || created.Published != created.Updated {
		t.Errorf(
			"created timestamps wrong published: %s updated: %s",
			created.Published, created.Updated,
		)
	}

	got, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Errorf("error getting activity: %v", err)
		t.FailNow()
	}
	if diff := cmp.Diff(created, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	// Reads without intervening writes stay identical.
	again, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Errorf("error getting activity again: %v", err)
		t.FailNow()
	}
	if diff := cmp.Diff(got, again); diff != "" {
		t.Errorf("repeated get mismatch (-want +got):\n%s", diff)
	}
}

func TestMemStoreCreateValidates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemStore(testIDFunc())

	_, err := store.Create(ctx, models.Activity{
		Object: models.Object{ObjectType: "note"},
	})
	if !errors.Is(err, models.ErrMissingVerb) {
		t.Errorf("expected ErrMissingVerb got %v", err)
	}
}

func TestMemStoreGetUnknown(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemStore(testIDFunc())

	_, err := store.Get(ctx, "https://example.com/api/activity/nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound got %v", err)
	}
}

func TestMemStoreReplace(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemStore(testIDFunc())

	created, err := store.Create(ctx, noteActivity())
	if err != nil {
		t.Errorf("error creating activity: %v", err)
		t.FailNow()
	}

	patch := models.Activity{
		Extra: map[string]interface{}{
			"mood": map[string]interface{}{"displayName": "Friendly"},
		},
	}
	updated, err := store.Replace(ctx, created.ID, patch)
	if err != nil {
		t.Errorf("error replacing activity: %v", err)
		t.FailNow()
	}

	if updated.Updated <= created.Updated {
		t.Errorf("updated did not advance: %s -> %s", created.Updated, updated.Updated)
	}
	if updated.Published != created.Published {
		t.Errorf("published changed on replace: %s", updated.Published)
	}
	mood, ok := updated.Extra["mood"].(map[string]interface{})
	if !ok || mood["displayName"] != "Friendly" {
		t.Errorf("mood extension not merged: %v", updated.Extra)
	}

	// Read-after-write: the replacement is what Get returns.
	got, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Errorf("error getting activity: %v", err)
		t.FailNow()
	}
	if diff := cmp.Diff(updated, got); diff != "" {
		t.Errorf("read-after-write mismatch (-want +got):\n%s", diff)
	}
}

func TestMemStoreReplaceMonotonic(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemStore(testIDFunc())

	created, err := store.Create(ctx, noteActivity())
	if err != nil {
		t.Errorf("error creating activity: %v", err)
		t.FailNow()
	}

	prev := created.Updated
	for i := 0; i < 10; i++ {
		updated, err := store.Replace(ctx, created.ID, models.Activity{})
		if err != nil {
			t.Errorf("error replacing activity: %v", err)
			t.FailNow()
		}
		if updated.Updated <= prev {
			t.Errorf("updated regressed: %s -> %s", prev, updated.Updated)
		}
		prev = updated.Updated
	}
}

func TestMemStoreDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemStore(testIDFunc())

	created, err := store.Create(ctx, noteActivity())
	if err != nil {
		t.Errorf("error creating activity: %v", err)
		t.FailNow()
	}

	if err := store.Delete(ctx, created.ID); err != nil {
		t.Errorf("error deleting activity: %v", err)
	}

	_, err = store.Get(ctx, created.ID)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted activity still readable: %v", err)
	}

	if err := store.Delete(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("double delete expected ErrNotFound got %v", err)
	}

	_, err = store.Replace(ctx, created.ID, models.Activity{})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("replace of deleted activity expected ErrNotFound got %v", err)
	}
}

func TestMemStoreConcurrentCreates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemStore(testIDFunc())

	const workers = 32

	ids := make(chan string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, err := store.Create(ctx, noteActivity())
			if err != nil {
				t.Errorf("error creating activity: %v", err)
				return
			}
			ids <- created.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		if seen[id] {
			t.Errorf("duplicate activity id under concurrent creates: %s", id)
		}
		seen[id] = true
	}
	if len(seen) != workers {
		t.Errorf("expected %d distinct ids got %d", workers, len(seen))
	}
}

func TestMemStoreRacingReplaceAndDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemStore(testIDFunc())

	created, err := store.Create(ctx, noteActivity())
	if err != nil {
		t.Errorf("error creating activity: %v", err)
		t.FailNow()
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Replace(ctx, created.ID, models.Activity{})
			if err != nil && !errors.Is(err, ErrNotFound) {
				t.Errorf("unexpected replace error: %v", err)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := store.Delete(ctx, created.ID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			t.Errorf("unexpected delete error: %v", err)
		}
	}()
	wg.Wait()

	// Whatever interleaving happened, the delete must not be undone by
	// a racing update.
	_, err = store.Get(ctx, created.ID)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted activity revived by racing replace: %v", err)
	}
}
