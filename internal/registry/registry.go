// Package registry holds a read-only snapshot of subreddit and webhook
// registrations. Registrations are owned elsewhere; this package only
// reads them, refreshes them on an interval, and mirrors the webhook
// endpoints into Redis so alert consumers resolve against the same
// snapshot the stream workers were started with.
package registry

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/Joel-Projects/modlogd/config"
	"github.com/Joel-Projects/modlogd/internal/logger"
	"github.com/Joel-Projects/modlogd/internal/models"
	"github.com/Joel-Projects/modlogd/pkg/utils"
)

const webhookCacheKey = "modlog:webhooks"

// Source loads registrations from their system of record
type Source interface {
	Subreddits(ctx context.Context) ([]models.Subreddit, error)
	Webhooks(ctx context.Context) ([]models.Webhook, error)
}

// Snapshot is one consistent view of the registrations
type Snapshot struct {
	Subreddits []models.Subreddit
	Webhooks   map[string]models.Webhook
}

// Registry caches the latest snapshot and keeps the Redis webhook mirror
// in sync with it.
type Registry struct {
	source Source
	rdb    *redis.Client
	cfg    config.RegistryConfig

	mu          sync.RWMutex
	snap        Snapshot
	fingerprint string
}

// New creates a registry over the given source and Redis client
func New(source Source, rdb *redis.Client, cfg config.RegistryConfig) *Registry {
	return &Registry{source: source, rdb: rdb, cfg: cfg}
}

// Refresh loads a fresh snapshot and updates the webhook mirror. The
// previous snapshot stays served if loading fails.
func (r *Registry) Refresh(ctx context.Context) error {
	subs, err := r.source.Subreddits(ctx)
	if err != nil {
		return err
	}
	hooks, err := r.source.Webhooks(ctx)
	if err != nil {
		return err
	}

	byName := make(map[string]models.Webhook, len(hooks))
	for _, h := range hooks {
		byName[strings.ToLower(h.Subreddit)] = h
	}

	r.mu.Lock()
	r.snap = Snapshot{Subreddits: subs, Webhooks: byName}
	r.mu.Unlock()

	return r.writeWebhookCache(ctx, byName)
}

// Snapshot returns the most recent successfully loaded snapshot
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap
}

// Run refreshes the snapshot on the configured interval until the context
// is cancelled. A failed refresh is logged and retried on the next tick.
func (r *Registry) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Refresh(ctx); err != nil {
				logger.Warn("Registration refresh failed", "error", err)
			}
		}
	}
}

// writeWebhookCache mirrors subreddit admin-webhook URLs into a Redis
// hash. The hash is rewritten only when its contents changed, compared by
// fingerprint, so steady-state refreshes cost one hash computation.
func (r *Registry) writeWebhookCache(ctx context.Context, hooks map[string]models.Webhook) error {
	names := make([]string, 0, len(hooks))
	for name := range hooks {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	fields := make(map[string]string, len(hooks))
	for _, name := range names {
		h := hooks[name]
		if h.AdminURL == "" {
			continue
		}
		fields[name] = h.AdminURL
		sb.WriteString(name)
		sb.WriteByte('\x00')
		sb.WriteString(h.AdminURL)
		sb.WriteByte('\x00')
	}

	fp := utils.HashString(sb.String())
	r.mu.Lock()
	unchanged := fp == r.fingerprint
	r.fingerprint = fp
	r.mu.Unlock()
	if unchanged {
		return nil
	}

	pipe := r.rdb.TxPipeline()
	pipe.Del(ctx, webhookCacheKey)
	if len(fields) > 0 {
		pipe.HSet(ctx, webhookCacheKey, fields)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	logger.Info("Webhook cache snapshot written", "entries", len(fields))
	return nil
}

// RedisLookup resolves admin webhook endpoints from the mirrored snapshot
type RedisLookup struct {
	rdb *redis.Client
}

// NewRedisLookup creates a lookup over the mirrored webhook snapshot
func NewRedisLookup(rdb *redis.Client) *RedisLookup {
	return &RedisLookup{rdb: rdb}
}

// AdminWebhook returns the registered admin endpoint for a subreddit.
// Lookup failures read as unregistered; alerting stays best-effort.
func (l *RedisLookup) AdminWebhook(ctx context.Context, subreddit string) (string, bool) {
	url, err := l.rdb.HGet(ctx, webhookCacheKey, strings.ToLower(subreddit)).Result()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("Webhook lookup failed", "subreddit", subreddit, "error", err)
		}
		return "", false
	}
	return url, url != ""
}
