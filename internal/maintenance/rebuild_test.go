package maintenance

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"

	"github.com/Joel-Projects/modlogd/config"
	"github.com/Joel-Projects/modlogd/internal/dedup"
	"github.com/Joel-Projects/modlogd/internal/models"
	"github.com/Joel-Projects/modlogd/internal/store"
)

func testRebuilder(t *testing.T) (*Rebuilder, *store.InMemoryStore, *dedup.Cache) {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)
	cache := dedup.NewWithClient(redis.NewClient(&redis.Options{Addr: s.Addr()}))
	st := store.NewInMemoryStore()
	cfg := config.MaintenanceConfig{
		RebuildWindow: 7 * 24 * time.Hour,
		CheckInterval: time.Hour,
	}
	return NewRebuilder(st, cache, cfg), st, cache
}

func TestRebuildLoadsRecentIDs(t *testing.T) {
	r, st, cache := testRebuilder(t)
	ctx := context.Background()

	now := time.Now().UTC()
	recent := models.ModAction{ID: "recent", CreatedUTC: now.Add(-time.Hour)}
	old := models.ModAction{ID: "old", CreatedUTC: now.Add(-30 * 24 * time.Hour)}
	for _, a := range []models.ModAction{recent, old} {
		a := a
		if _, err := st.UpsertAction(ctx, &a); err != nil {
			t.Fatal(err)
		}
	}

	if err := r.RebuildIfDue(ctx); err != nil {
		t.Fatalf("RebuildIfDue: %v", err)
	}

	if !cache.Get(ctx, "recent") {
		t.Error("recent id missing from rebuilt cache")
	}
	if cache.Get(ctx, "old") {
		t.Error("id outside the rebuild window was loaded")
	}
}

func TestRebuildRunsAtMostOncePerDay(t *testing.T) {
	r, st, cache := testRebuilder(t)
	ctx := context.Background()

	if err := r.RebuildIfDue(ctx); err != nil {
		t.Fatalf("first rebuild: %v", err)
	}

	// A row persisted after the rebuild must not appear via a same-day
	// second rebuild.
	late := models.ModAction{ID: "late", CreatedUTC: time.Now().UTC()}
	if _, err := st.UpsertAction(ctx, &late); err != nil {
		t.Fatal(err)
	}

	if err := r.RebuildIfDue(ctx); err != nil {
		t.Fatalf("second rebuild: %v", err)
	}
	if cache.Get(ctx, "late") {
		t.Error("rebuild ran twice within one day")
	}
}

func TestRebuildRetriesAfterStorageFailure(t *testing.T) {
	s, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)
	cache := dedup.NewWithClient(redis.NewClient(&redis.Options{Addr: s.Addr()}))
	fs := &failingStore{InMemoryStore: store.NewInMemoryStore(), fail: true}
	r := NewRebuilder(fs, cache, config.MaintenanceConfig{RebuildWindow: time.Hour, CheckInterval: time.Hour})
	ctx := context.Background()

	a := models.ModAction{ID: "X", CreatedUTC: time.Now().UTC()}
	if _, err := fs.InMemoryStore.UpsertAction(ctx, &a); err != nil {
		t.Fatal(err)
	}

	if err := r.RebuildIfDue(ctx); err == nil {
		t.Fatal("expected error from failing store")
	}

	// Marker must not be written on failure so the next check retries.
	fs.fail = false
	if err := r.RebuildIfDue(ctx); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !cache.Get(ctx, "X") {
		t.Error("retry after failure did not rebuild the cache")
	}
}

type failingStore struct {
	*store.InMemoryStore
	fail bool
}

func (s *failingStore) RecentIDs(ctx context.Context, since time.Time) ([]string, error) {
	if s.fail {
		return nil, context.DeadlineExceeded
	}
	return s.InMemoryStore.RecentIDs(ctx, since)
}
