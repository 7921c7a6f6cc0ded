// Package persist consumes queued units of work and writes them to the
// audit log. The storage upsert's returned novelty flag is the single
// source of truth for whether an action is new; the dedup cache only
// reduces future work.
package persist

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/Joel-Projects/modlogd/internal/dedup"
	"github.com/Joel-Projects/modlogd/internal/logger"
	"github.com/Joel-Projects/modlogd/internal/metrics"
	"github.com/Joel-Projects/modlogd/internal/models"
	"github.com/Joel-Projects/modlogd/internal/queue"
	"github.com/Joel-Projects/modlogd/internal/store"
)

// Alerter raises an alert for one confirmed-novel admin action
type Alerter interface {
	Notify(ctx context.Context, a models.ModAction)
}

// Handler persists work units delivered by the queue. Delivery is
// at-least-once and unordered, so every write is an idempotent keyed
// upsert.
type Handler struct {
	store   store.Store
	cache   *dedup.Cache
	alerter Alerter
}

// NewHandler creates a persistence handler
func NewHandler(st store.Store, cache *dedup.Cache, alerter Alerter) *Handler {
	return &Handler{
		store:   st,
		cache:   cache,
		alerter: alerter,
	}
}

// ProcessTask handles one unit. A storage error is returned to the queue
// for retry; everything already inserted stays written to the cache so the
// retried unit does less work.
func (h *Handler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	unit, err := models.UnmarshalWorkUnit(t.Payload())
	if err != nil {
		// A malformed payload will never succeed; retrying would only
		// churn the queue.
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	queueName := queue.Name(unit.Admin, unit.Live)

	var insertedIDs []string
	for i := range unit.Actions {
		a := &unit.Actions[i]

		inserted, err := h.store.UpsertAction(ctx, a)
		if err != nil {
			h.cache.SetMulti(ctx, insertedIDs)
			metrics.RecordQueueTask(queueName, "retry")
			return fmt.Errorf("persist unit %s: %w", unit.UnitID, err)
		}

		if !inserted {
			metrics.RecordActionProcessed(queueName, "duplicate")
			continue
		}

		insertedIDs = append(insertedIDs, a.ID)
		metrics.RecordActionProcessed(queueName, "inserted")

		// Alert only for confirmed-novel admin actions observed live;
		// backlog replays never alert.
		if unit.Admin && unit.Live {
			h.alerter.Notify(ctx, *a)
		}
	}

	// Write-through: successful inserts are marked seen so future
	// duplicates are dropped before reaching storage.
	h.cache.SetMulti(ctx, insertedIDs)

	metrics.RecordQueueTask(queueName, "done")
	logger.Debug("Persisted work unit",
		"unit_id", unit.UnitID,
		"queue", queueName,
		"inserted", len(insertedIDs),
		"duplicates", len(unit.Actions)-len(insertedIDs),
	)
	return nil
}
