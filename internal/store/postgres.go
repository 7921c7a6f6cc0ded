package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/Joel-Projects/modlogd/internal/errors"
	"github.com/Joel-Projects/modlogd/internal/models"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db Database
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(db Database) *PostgresStore {
	return &PostgresStore{db: db}
}

// UpsertAction writes one action idempotently. ON CONFLICT DO NOTHING
// keeps the audit log append-only: a re-delivered id never creates a
// second row and never overwrites stored fields. The affected-row count is
// the novelty signal.
func (s *PostgresStore) UpsertAction(ctx context.Context, a *models.ModAction) (bool, error) {
	query := `
		INSERT INTO mod_actions (
			id, created_utc, moderator, subreddit, mod_action, details,
			description, target_type, target_id, target_fullname,
			target_author, target_body, target_permalink, target_title
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)
		ON CONFLICT (id) DO NOTHING
	`

	affected, err := s.db.Exec(ctx, query,
		a.ID, a.CreatedUTC, a.Moderator, a.Subreddit, a.ModAction,
		a.Details, a.Description, nullType(a.TargetType), nullString(a.TargetID),
		nullString(a.TargetFullname), a.TargetAuthor, a.TargetBody,
		a.TargetPermalink, a.TargetTitle,
	)
	if err != nil {
		return false, apperrors.StorageError{Operation: "upsert mod action " + a.ID, Err: err}
	}

	inserted := affected > 0
	if inserted {
		a.QueryAction = models.QueryInsert
	} else {
		a.QueryAction = models.QueryUpdate
	}
	return inserted, nil
}

// RecentIDs lists ids of actions created since the given time
func (s *PostgresStore) RecentIDs(ctx context.Context, since time.Time) ([]string, error) {
	query := `SELECT id FROM mod_actions WHERE created_utc >= $1`

	rowsInterface, err := s.db.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("query recent ids: %w", err)
	}

	rows, ok := rowsInterface.(pgx.Rows)
	if !ok {
		return nil, fmt.Errorf("invalid rows type")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// Health checks the database connection
func (s *PostgresStore) Health(ctx context.Context) error {
	return s.db.Health(ctx)
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullType(t models.TargetType) *string {
	if t == "" {
		return nil
	}
	s := string(t)
	return &s
}
