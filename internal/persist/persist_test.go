package persist

import (
	"context"
	"errors"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	redis "github.com/redis/go-redis/v9"

	"github.com/Joel-Projects/modlogd/internal/dedup"
	"github.com/Joel-Projects/modlogd/internal/models"
	"github.com/Joel-Projects/modlogd/internal/queue"
	"github.com/Joel-Projects/modlogd/internal/store"
)

type countingAlerter struct {
	alerts []models.ModAction
}

func (c *countingAlerter) Notify(ctx context.Context, a models.ModAction) {
	c.alerts = append(c.alerts, a)
}

type failingStore struct {
	*store.InMemoryStore
	fail bool
}

func (s *failingStore) UpsertAction(ctx context.Context, a *models.ModAction) (bool, error) {
	if s.fail {
		return false, errors.New("connection refused")
	}
	return s.InMemoryStore.UpsertAction(ctx, a)
}

func testHandler(t *testing.T) (*Handler, *store.InMemoryStore, *dedup.Cache, *countingAlerter) {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)
	cache := dedup.NewWithClient(redis.NewClient(&redis.Options{Addr: s.Addr()}))
	st := store.NewInMemoryStore()
	alerter := &countingAlerter{}
	return NewHandler(st, cache, alerter), st, cache, alerter
}

func unitTask(t *testing.T, admin, live bool, actions ...models.ModAction) *asynq.Task {
	t.Helper()
	unit := models.WorkUnit{
		Version: models.PayloadVersion,
		UnitID:  "unit-1",
		Admin:   admin,
		Live:    live,
		Actions: actions,
	}
	payload, err := unit.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	return asynq.NewTask(queue.TypePersistActions, payload)
}

func TestProcessTaskIdempotentUnderRedelivery(t *testing.T) {
	h, st, _, _ := testHandler(t)
	ctx := context.Background()

	task := unitTask(t, false, true, models.ModAction{ID: "X"}, models.ModAction{ID: "Y"})

	if err := h.ProcessTask(ctx, task); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := h.ProcessTask(ctx, task); err != nil {
		t.Fatalf("second delivery: %v", err)
	}

	if st.Len() != 2 {
		t.Errorf("expected 2 rows after redelivery, got %d", st.Len())
	}
}

func TestProcessTaskAlertsOnlyLiveAdminInserts(t *testing.T) {
	h, _, _, alerter := testHandler(t)
	ctx := context.Background()

	// Novel live admin action: exactly one alert.
	live := unitTask(t, true, true, models.ModAction{ID: "abc", Subreddit: "testsub"})
	if err := h.ProcessTask(ctx, live); err != nil {
		t.Fatalf("live unit: %v", err)
	}
	if len(alerter.alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerter.alerts))
	}

	// Same action replayed from a backlog path: no row, no alert.
	backlog := unitTask(t, true, false, models.ModAction{ID: "abc", Subreddit: "testsub"})
	if err := h.ProcessTask(ctx, backlog); err != nil {
		t.Fatalf("backlog unit: %v", err)
	}
	if len(alerter.alerts) != 1 {
		t.Errorf("backlog replay alerted, total %d", len(alerter.alerts))
	}

	// Redelivered live unit: duplicate, no second alert.
	if err := h.ProcessTask(ctx, live); err != nil {
		t.Fatalf("redelivered live unit: %v", err)
	}
	if len(alerter.alerts) != 1 {
		t.Errorf("duplicate insert alerted, total %d", len(alerter.alerts))
	}
}

func TestProcessTaskBacklogNeverAlerts(t *testing.T) {
	h, st, _, alerter := testHandler(t)
	ctx := context.Background()

	task := unitTask(t, true, false, models.ModAction{ID: "novel", Subreddit: "testsub"})
	if err := h.ProcessTask(ctx, task); err != nil {
		t.Fatalf("backlog unit: %v", err)
	}
	if st.Len() != 1 {
		t.Errorf("expected the novel backlog action persisted, rows %d", st.Len())
	}
	if len(alerter.alerts) != 0 {
		t.Errorf("backlog path alerted %d times regardless of novelty", len(alerter.alerts))
	}
}

func TestProcessTaskWritesThroughToCache(t *testing.T) {
	h, _, cache, _ := testHandler(t)
	ctx := context.Background()

	task := unitTask(t, false, true, models.ModAction{ID: "X"})
	if err := h.ProcessTask(ctx, task); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}

	seen := cache.GetMulti(ctx, []string{"X"})
	if _, ok := seen["X"]; !ok {
		t.Error("inserted id not written through to the dedup cache")
	}
}

func TestProcessTaskStorageErrorIsRetryable(t *testing.T) {
	s, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)
	cache := dedup.NewWithClient(redis.NewClient(&redis.Options{Addr: s.Addr()}))
	fs := &failingStore{InMemoryStore: store.NewInMemoryStore(), fail: true}
	h := NewHandler(fs, cache, &countingAlerter{})

	task := unitTask(t, false, true, models.ModAction{ID: "X"})
	err = h.ProcessTask(context.Background(), task)
	if err == nil {
		t.Fatal("expected retryable error")
	}
	if errors.Is(err, asynq.SkipRetry) {
		t.Error("storage error must stay retryable, got SkipRetry")
	}

	fs.fail = false
	if err := h.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("retry after recovery: %v", err)
	}
	if fs.Len() != 1 {
		t.Errorf("expected 1 row after retry, got %d", fs.Len())
	}
}

func TestProcessTaskMalformedPayloadSkipsRetry(t *testing.T) {
	h, _, _, _ := testHandler(t)

	task := asynq.NewTask(queue.TypePersistActions, []byte("not json"))
	err := h.ProcessTask(context.Background(), task)
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}

	stale := asynq.NewTask(queue.TypePersistActions, []byte(`{"version":99}`))
	err = h.ProcessTask(context.Background(), stale)
	if !errors.Is(err, asynq.SkipRetry) || !strings.Contains(err.Error(), "version") {
		t.Fatalf("expected version rejection with SkipRetry, got %v", err)
	}
}
