package supervise

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/Joel-Projects/modlogd/internal/dedup"
	"github.com/Joel-Projects/modlogd/internal/dispatch"
	apperrors "github.com/Joel-Projects/modlogd/internal/errors"
	"github.com/Joel-Projects/modlogd/internal/logger"
	"github.com/Joel-Projects/modlogd/internal/metrics"
	"github.com/Joel-Projects/modlogd/internal/models"
	"github.com/Joel-Projects/modlogd/internal/normalize"
	"github.com/Joel-Projects/modlogd/internal/reddit"
)

const shutdownFlushTimeout = 10 * time.Second

// StreamService is one supervised worker: it reads its partition's
// mod-log entries, normalizes them, filters through the dedup cache, and
// hands survivors to the dispatcher. Backlog kinds finish at pagination
// exhaustion; live kinds run until shutdown and are restarted on failure.
type StreamService struct {
	reader     *reddit.Reader
	dispatcher *dispatch.Dispatcher
	cache      *dedup.Cache
	kind       models.StreamKind
	chunk      Chunk
	log        *slog.Logger
}

// NewStreamService creates the worker for one (chunk, stream kind) pair
func NewStreamService(reader *reddit.Reader, dispatcher *dispatch.Dispatcher, cache *dedup.Cache, kind models.StreamKind, chunk Chunk) *StreamService {
	return &StreamService{
		reader:     reader,
		dispatcher: dispatcher,
		cache:      cache,
		kind:       kind,
		chunk:      chunk,
		log: logger.With(
			"kind", string(kind),
			"account", chunk.Account,
			"subreddits", chunk.Subreddits,
		),
	}
}

func (s *StreamService) String() string {
	return fmt.Sprintf("stream[%s/%s/%d]", s.chunk.Account, s.kind, len(s.chunk.Subreddits))
}

// Serve implements suture.Service
func (s *StreamService) Serve(ctx context.Context) error {
	if s.kind.Live() {
		return s.serveLive(ctx)
	}
	return s.serveBacklog(ctx)
}

// serveLive tails the log until the context is cancelled or the source
// fails. Whatever is still buffered gets flushed on the way out so a
// shutdown cannot strand records.
func (s *StreamService) serveLive(ctx context.Context) error {
	err := s.reader.Stream(ctx, func(ev reddit.Event) error {
		switch ev.Kind {
		case reddit.EventIdle:
			return s.dispatcher.IdleTick(ctx)
		case reddit.EventItem:
			a, nerr := normalize.Action(ev.Raw)
			if nerr != nil {
				s.log.Warn("Dropping malformed entry", "error", nerr)
				metrics.RecordActionProcessed(string(s.kind), "malformed")
				return nil
			}
			if !s.cache.Add(ctx, a.ID) {
				metrics.RecordActionProcessed(string(s.kind), "seen")
				return nil
			}
			return s.dispatcher.Append(ctx, a)
		}
		return nil
	})

	if s.dispatcher.Buffered() > 0 {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownFlushTimeout)
		defer cancel()
		if ferr := s.dispatcher.Flush(flushCtx); ferr != nil {
			s.log.Error("Shutdown flush failed",
				"error", ferr,
				"stranded", s.dispatcher.Buffered(),
			)
		}
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		s.log.Error("Live stream failed", "error", err, "fatal", apperrors.IsSourceFatal(err))
		return apperrors.PipelineError{Worker: s.String(), Stage: "stream", Err: err}
	}
	return err
}

// serveBacklog walks history to exhaustion once. Completion is terminal
// for the supervisor; only failures are retried.
func (s *StreamService) serveBacklog(ctx context.Context) error {
	err := s.reader.Backlog(ctx, func(page []map[string]any) error {
		actions := make([]models.ModAction, 0, len(page))
		for _, raw := range page {
			a, nerr := normalize.Action(raw)
			if nerr != nil {
				s.log.Warn("Dropping malformed entry", "error", nerr)
				metrics.RecordActionProcessed(string(s.kind), "malformed")
				continue
			}
			actions = append(actions, a)
		}
		return s.dispatcher.Page(ctx, actions)
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		s.log.Error("Backlog walk failed", "error", err)
		return apperrors.PipelineError{Worker: s.String(), Stage: "backlog", Err: err}
	}

	s.log.Info("Backlog complete")
	return suture.ErrDoNotRestart
}
