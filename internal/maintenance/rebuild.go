// Package maintenance runs the background upkeep loops. The dedup cache
// is advisory and can be lost wholesale (flush, failover, cold start);
// rebuilding it from recently persisted ids keeps the post-restart window
// from re-queueing work the audit log already holds.
package maintenance

import (
	"context"
	"time"

	"github.com/Joel-Projects/modlogd/config"
	"github.com/Joel-Projects/modlogd/internal/dedup"
	"github.com/Joel-Projects/modlogd/internal/logger"
	"github.com/Joel-Projects/modlogd/internal/store"
)

const dayFormat = "2006-01-02"

// Rebuilder reloads recently persisted action ids into the dedup cache at
// most once per UTC day.
type Rebuilder struct {
	store store.Store
	cache *dedup.Cache
	cfg   config.MaintenanceConfig
}

// NewRebuilder creates a cache rebuilder
func NewRebuilder(st store.Store, cache *dedup.Cache, cfg config.MaintenanceConfig) *Rebuilder {
	return &Rebuilder{store: st, cache: cache, cfg: cfg}
}

// Run checks on the configured interval whether a rebuild is due, starting
// with an immediate check so a cold start is covered right away.
func (r *Rebuilder) Run(ctx context.Context) error {
	if err := r.RebuildIfDue(ctx); err != nil {
		logger.Warn("Cache rebuild failed", "error", err)
	}

	ticker := time.NewTicker(r.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.RebuildIfDue(ctx); err != nil {
				logger.Warn("Cache rebuild failed", "error", err)
			}
		}
	}
}

// RebuildIfDue reloads the cache unless the marker key shows a rebuild
// already ran today. The marker is written only after a successful reload,
// so a failed attempt is retried on the next check.
func (r *Rebuilder) RebuildIfDue(ctx context.Context) error {
	today := time.Now().UTC().Format(dayFormat)
	if r.cache.LastRebuildDay(ctx) == today {
		return nil
	}

	since := time.Now().UTC().Add(-r.cfg.RebuildWindow)
	ids, err := r.store.RecentIDs(ctx, since)
	if err != nil {
		return err
	}

	r.cache.SetMulti(ctx, ids)
	r.cache.MarkRebuilt(ctx, today)

	logger.Info("Dedup cache rebuilt",
		"ids", len(ids),
		"window", r.cfg.RebuildWindow.String(),
	)
	return nil
}
