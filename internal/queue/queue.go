// Package queue integrates the pipeline with its Redis-backed task broker.
// Units of persistence work are distributed across a worker pool with
// at-least-once delivery; consumers must tolerate duplicates.
package queue

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/Joel-Projects/modlogd/config"
	"github.com/Joel-Projects/modlogd/internal/logger"
	"github.com/Joel-Projects/modlogd/internal/metrics"
	"github.com/Joel-Projects/modlogd/internal/models"
)

// TypePersistActions is the task type for one unit of persistence work
const TypePersistActions = "modactions:persist"

// Queue names, one per (actor class, traffic kind) pair. Weights order
// consumption: live privileged > live ordinary > backlog privileged >
// backlog ordinary.
const (
	QueueLiveAdmin    = "live_admin"
	QueueLive         = "live"
	QueueBacklogAdmin = "backlog_admin"
	QueueBacklog      = "backlog"
)

// Name routes a unit to its queue based on its flags
func Name(admin, live bool) string {
	switch {
	case admin && live:
		return QueueLiveAdmin
	case live:
		return QueueLive
	case admin:
		return QueueBacklogAdmin
	default:
		return QueueBacklog
	}
}

// Weights returns the queue priority weights consumed under strict
// priority: a lower queue is only drained when every higher one is empty.
func Weights() map[string]int {
	return map[string]int{
		QueueLiveAdmin:    6,
		QueueLive:         3,
		QueueBacklogAdmin: 2,
		QueueBacklog:      1,
	}
}

// Client submits units of work to the broker. It implements dispatch.Sink.
type Client struct {
	client *asynq.Client
	cfg    config.QueueConfig
}

// NewClient connects a queue producer to the broker
func NewClient(redisURL string, cfg config.QueueConfig) (*Client, error) {
	connOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse broker url: %w", err)
	}
	return &Client{client: asynq.NewClient(connOpt), cfg: cfg}, nil
}

func (c *Client) Close() error { return c.client.Close() }

// Dispatch wraps a sub-chunk of records into a versioned unit and enqueues
// it at the priority its flags demand. Retry bounds are explicit: a failed
// unit is retried up to MaxRetry times with the broker's exponential
// backoff before landing in the dead-letter archive.
func (c *Client) Dispatch(ctx context.Context, actions []models.ModAction, admin, live bool) error {
	unit := models.WorkUnit{
		Version: models.PayloadVersion,
		UnitID:  uuid.NewString(),
		Admin:   admin,
		Live:    live,
		Actions: actions,
	}
	payload, err := unit.Marshal()
	if err != nil {
		return fmt.Errorf("encode work unit: %w", err)
	}

	queue := Name(admin, live)
	task := asynq.NewTask(TypePersistActions, payload)
	info, err := c.client.EnqueueContext(ctx, task,
		asynq.Queue(queue),
		asynq.MaxRetry(c.cfg.MaxRetry),
		asynq.Timeout(c.cfg.TaskTimeout),
	)
	if err != nil {
		metrics.RecordQueueTask(queue, "enqueue_error")
		return fmt.Errorf("enqueue unit %s: %w", unit.UnitID, err)
	}

	metrics.RecordQueueTask(queue, "enqueued")
	logger.Debug("Enqueued work unit",
		"unit_id", unit.UnitID,
		"queue", queue,
		"task_id", info.ID,
		"count", len(actions),
	)
	return nil
}

// Server consumes units with an independently sized worker pool
type Server struct {
	srv *asynq.Server
	mux *asynq.ServeMux
}

// NewServer builds the consumer side of the broker. The handler receives
// every persistence unit; delivery is at-least-once.
func NewServer(redisURL string, cfg config.QueueConfig, handler asynq.Handler) (*Server, error) {
	connOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse broker url: %w", err)
	}

	srv := asynq.NewServer(connOpt, asynq.Config{
		Concurrency:    cfg.Concurrency,
		Queues:         Weights(),
		StrictPriority: true,
	})

	mux := asynq.NewServeMux()
	mux.Handle(TypePersistActions, handler)

	return &Server{srv: srv, mux: mux}, nil
}

// Run starts the worker pool and blocks until the context is cancelled
func (s *Server) Run(ctx context.Context) error {
	if err := s.srv.Start(s.mux); err != nil {
		return fmt.Errorf("start queue server: %w", err)
	}
	<-ctx.Done()
	s.srv.Shutdown()
	return ctx.Err()
}
