package registry

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Joel-Projects/modlogd/internal/models"
	"github.com/Joel-Projects/modlogd/internal/store"
)

// PostgresSource reads registrations from the shared Postgres instance.
// The tables are written by the external command surface; this side only
// selects.
type PostgresSource struct {
	db store.Database
}

// NewPostgresSource creates a registration source over the database
func NewPostgresSource(db store.Database) *PostgresSource {
	return &PostgresSource{db: db}
}

// Subreddits lists every registered community
func (s *PostgresSource) Subreddits(ctx context.Context) ([]models.Subreddit, error) {
	query := `
		SELECT name, role_id, channel_id, modlog_account, alert_channel_id
		FROM subreddits
		ORDER BY name
	`

	rows, err := s.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query subreddits: %w", err)
	}
	defer rows.Close()

	var subs []models.Subreddit
	for rows.Next() {
		var sub models.Subreddit
		if err := rows.Scan(&sub.Name, &sub.RoleID, &sub.ChannelID, &sub.ModlogAccount, &sub.AlertChannelID); err != nil {
			return nil, fmt.Errorf("scan subreddit: %w", err)
		}
		subs = append(subs, sub)
	}

	return subs, rows.Err()
}

// Webhooks lists the registered alert endpoints
func (s *PostgresSource) Webhooks(ctx context.Context) ([]models.Webhook, error) {
	query := `SELECT subreddit, admin_url, general_url FROM webhooks`

	rows, err := s.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query webhooks: %w", err)
	}
	defer rows.Close()

	var hooks []models.Webhook
	for rows.Next() {
		var h models.Webhook
		if err := rows.Scan(&h.Subreddit, &h.AdminURL, &h.GeneralURL); err != nil {
			return nil, fmt.Errorf("scan webhook: %w", err)
		}
		hooks = append(hooks, h)
	}

	return hooks, rows.Err()
}

func (s *PostgresSource) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	rowsInterface, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	rows, ok := rowsInterface.(pgx.Rows)
	if !ok {
		return nil, fmt.Errorf("invalid rows type")
	}
	return rows, nil
}
