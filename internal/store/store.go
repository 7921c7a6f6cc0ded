package store

import (
	"context"
	"time"

	"github.com/Joel-Projects/modlogd/internal/models"
)

// Store is the append-only audit log of moderation actions. UpsertAction
// is the single authoritative novelty check in the pipeline.
type Store interface {
	// UpsertAction inserts the record if no row with its id exists and
	// leaves an existing row untouched. It reports whether the write was a
	// fresh insert and stamps QueryAction on the record accordingly.
	UpsertAction(ctx context.Context, a *models.ModAction) (bool, error)
	// RecentIDs returns the ids of actions persisted since the given time,
	// used to rebuild the dedup cache after a cold start.
	RecentIDs(ctx context.Context, since time.Time) ([]string, error)
	Health(ctx context.Context) error
}

// Database interface for dependency injection
type Database interface {
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
	Query(ctx context.Context, sql string, args ...any) (interface{}, error)
	QueryRow(ctx context.Context, sql string, args ...any) interface{}
	Health(ctx context.Context) error
	IsConfigured() bool
}

// New creates a new store instance
func New(db Database) Store {
	if db.IsConfigured() {
		return NewPostgresStore(db)
	}
	// Fallback to in-memory store if no database
	return NewInMemoryStore()
}
