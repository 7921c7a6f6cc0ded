package reddit

import (
	"context"
	"time"

	"github.com/Joel-Projects/modlogd/config"
	"github.com/Joel-Projects/modlogd/internal/logger"
	"github.com/Joel-Projects/modlogd/internal/metrics"
	"github.com/Joel-Projects/modlogd/internal/models"
)

// EventKind discriminates what a live stream reader observed
type EventKind int

const (
	// EventItem carries one raw mod-log entry
	EventItem EventKind = iota
	// EventIdle signals that a long-poll interval passed with no new item;
	// the dispatcher uses it as a flush trigger
	EventIdle
)

// Event is one observation from a live stream
type Event struct {
	Kind EventKind
	Raw  map[string]any
}

// Reader obtains raw mod-log entries for one (subreddit chunk, stream
// kind) pair. It owns its client's pagination state and must not be shared.
type Reader struct {
	client     *Client
	subreddits []string
	kind       models.StreamKind
	cfg        config.RedditConfig
}

// NewReader creates a reader for one partition
func NewReader(client *Client, subreddits []string, kind models.StreamKind, cfg config.RedditConfig) *Reader {
	return &Reader{
		client:     client,
		subreddits: subreddits,
		kind:       kind,
		cfg:        cfg,
	}
}

// Backlog walks the full history from newest to oldest with no upper
// bound, invoking fn once per page. Each fn call is a complete page: the
// caller treats the call boundary as the chunk-end marker. Returns nil on
// pagination exhaustion.
func (r *Reader) Backlog(ctx context.Context, fn func(page []map[string]any) error) error {
	after := ""
	for {
		start := time.Now()
		entries, next, err := r.client.ModLog(ctx, r.subreddits, LogParams{
			Limit:     r.cfg.PageLimit,
			After:     after,
			AdminOnly: r.kind.Admin(),
		})
		metrics.RecordStreamRead(string(r.kind), time.Since(start))
		if err != nil {
			return err
		}

		if len(entries) > 0 {
			if err := fn(entries); err != nil {
				return err
			}
		}

		if next == "" || len(entries) == 0 {
			logger.Info("Backlog exhausted",
				"kind", r.kind,
				"subreddits", r.subreddits,
			)
			return nil
		}
		after = next
	}
}

// Stream long-polls the live tail, invoking fn for each new entry in
// source order. A poll that finds nothing new emits an explicit idle
// event. Runs until the context is cancelled or the source fails.
func (r *Reader) Stream(ctx context.Context, fn func(Event) error) error {
	before := ""
	for {
		start := time.Now()
		entries, _, err := r.client.ModLog(ctx, r.subreddits, LogParams{
			Limit:     r.cfg.PageLimit,
			Before:    before,
			AdminOnly: r.kind.Admin(),
		})
		metrics.RecordStreamRead(string(r.kind), time.Since(start))
		if err != nil {
			return err
		}

		if len(entries) == 0 {
			if err := fn(Event{Kind: EventIdle}); err != nil {
				return err
			}
		} else {
			// Entries arrive newest first; replay them oldest first so the
			// dispatcher sees source order within this worker.
			if id, ok := entries[0]["id"].(string); ok {
				before = id
			}
			for i := len(entries) - 1; i >= 0; i-- {
				if err := fn(Event{Kind: EventItem, Raw: entries[i]}); err != nil {
					return err
				}
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.cfg.StreamPause):
		}
	}
}
