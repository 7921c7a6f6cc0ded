package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Joel-Projects/modlogd/config"
	"github.com/Joel-Projects/modlogd/internal/logger"
	"github.com/Joel-Projects/modlogd/internal/metrics"
	"github.com/Joel-Projects/modlogd/internal/models"
	"github.com/Joel-Projects/modlogd/pkg/utils"
)

// WebhookLookup resolves the registered admin-alert endpoint for a
// community, if any
type WebhookLookup interface {
	AdminWebhook(ctx context.Context, subreddit string) (string, bool)
}

// Notifier delivers admin-action alerts to registered webhooks. Alerting
// is lossy: one delivery attempt, failures logged and dropped, never
// retried.
type Notifier struct {
	http   *http.Client
	lookup WebhookLookup
	cfg    config.AlertConfig
}

// New creates a notifier
func New(lookup WebhookLookup, cfg config.AlertConfig) *Notifier {
	return &Notifier{
		http: &http.Client{
			Timeout: cfg.DeliverTimeout,
		},
		lookup: lookup,
		cfg:    cfg,
	}
}

// payload is the rendered webhook body
type payload struct {
	Subreddit string `json:"subreddit"`
	Content   string `json:"content"`
}

// Notify renders and delivers one alert if the community has a registered
// endpoint. Called only for confirmed-novel admin actions seen on a live
// stream.
func (n *Notifier) Notify(ctx context.Context, a models.ModAction) {
	url, ok := n.lookup.AdminWebhook(ctx, a.Subreddit)
	if !ok {
		return
	}

	body, err := json.Marshal(payload{
		Subreddit: a.Subreddit,
		Content:   n.render(a),
	})
	if err != nil {
		logger.Error("Failed to render alert", "action_id", a.ID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, n.cfg.DeliverTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		logger.Error("Failed to build alert request", "action_id", a.ID, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := n.http.Do(req)
	if err != nil {
		metrics.RecordWebhookDelivery("error")
		logger.Warn("Alert delivery failed",
			"action_id", a.ID,
			"subreddit", a.Subreddit,
			"error", err,
		)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		metrics.RecordWebhookDelivery("rejected")
		logger.Warn("Alert delivery rejected",
			"action_id", a.ID,
			"subreddit", a.Subreddit,
			"status", resp.StatusCode,
		)
		return
	}

	metrics.RecordWebhookDelivery("delivered")
	logger.Debug("Alert delivered",
		"action_id", a.ID,
		"subreddit", a.Subreddit,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// render produces the bounded-size notification text
func (n *Notifier) render(a models.ModAction) string {
	text := fmt.Sprintf("Admin action in r/%s: %s by %s", a.Subreddit, a.ModAction, a.Moderator)
	if a.TargetAuthor != nil && *a.TargetAuthor != "" {
		text += fmt.Sprintf(" (target author: %s)", *a.TargetAuthor)
	}
	if a.Details != nil && *a.Details != "" {
		text += ": " + *a.Details
	}
	if a.TargetBody != nil && *a.TargetBody != "" {
		text += "\n> " + utils.Truncate(*a.TargetBody, n.cfg.MaxBodyLength)
	}
	if a.TargetPermalink != nil && *a.TargetPermalink != "" {
		text += "\n" + *a.TargetPermalink
	}
	return text
}
