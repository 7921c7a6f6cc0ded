package dispatch

import (
	"context"
	"fmt"

	"github.com/Joel-Projects/modlogd/config"
	"github.com/Joel-Projects/modlogd/internal/dedup"
	"github.com/Joel-Projects/modlogd/internal/logger"
	"github.com/Joel-Projects/modlogd/internal/models"
)

// Sink receives finished units of dispatch work. The queue client
// implements it; tests substitute their own.
type Sink interface {
	Dispatch(ctx context.Context, actions []models.ModAction, admin, live bool) error
}

// Dispatcher decides when buffered, deduplicated records become units of
// queued work. It is the pipeline's throughput-vs-latency control point:
// live traffic buffers until a threshold, an idle tick, or shutdown; admin
// records skip the buffer entirely; backlog pages are filtered and
// dispatched at low priority so they cannot starve live traffic.
// Not safe for concurrent use; each stream worker owns one.
type Dispatcher struct {
	sink  Sink
	cache *dedup.Cache
	kind  models.StreamKind
	cfg   config.DispatchConfig
	buf   []models.ModAction
}

// New creates a dispatcher for one (chunk, stream-kind) worker
func New(sink Sink, cache *dedup.Cache, kind models.StreamKind, cfg config.DispatchConfig) *Dispatcher {
	return &Dispatcher{
		sink:  sink,
		cache: cache,
		kind:  kind,
		cfg:   cfg,
	}
}

// Append buffers one live record. Admin records are dispatched immediately
// as single-record units to minimize alert latency; ordinary records
// buffer until the size threshold.
func (d *Dispatcher) Append(ctx context.Context, a models.ModAction) error {
	if d.kind.Admin() {
		return d.sink.Dispatch(ctx, []models.ModAction{a}, true, d.kind.Live())
	}

	d.buf = append(d.buf, a)
	if len(d.buf) >= d.cfg.BufferThreshold {
		return d.Flush(ctx)
	}
	return nil
}

// IdleTick flushes the buffer when the reader reports a quiet interval
func (d *Dispatcher) IdleTick(ctx context.Context) error {
	return d.Flush(ctx)
}

// Flush dispatches the buffered records as fixed-size sub-chunks, bounding
// the size of any single persistence transaction. On a sink error the
// undispatched remainder stays buffered for the next flush.
func (d *Dispatcher) Flush(ctx context.Context) error {
	if len(d.buf) == 0 {
		return nil
	}

	logger.Debug("Flushing dispatch buffer",
		"kind", d.kind,
		"count", len(d.buf),
	)

	for len(d.buf) > 0 {
		end := d.cfg.SubChunkSize
		if end > len(d.buf) {
			end = len(d.buf)
		}
		chunk := d.buf[:end]
		if err := d.sink.Dispatch(ctx, chunk, d.kind.Admin(), d.kind.Live()); err != nil {
			return fmt.Errorf("dispatch sub-chunk: %w", err)
		}
		d.buf = d.buf[end:]
	}
	d.buf = nil
	return nil
}

// Page handles one backlog page: records already seen by the cache are
// dropped cheaply, the survivors dispatched as low-priority sub-chunks and
// then marked seen.
func (d *Dispatcher) Page(ctx context.Context, actions []models.ModAction) error {
	if len(actions) == 0 {
		return nil
	}

	ids := make([]string, len(actions))
	for i, a := range actions {
		ids[i] = a.ID
	}
	seen := d.cache.GetMulti(ctx, ids)

	fresh := actions[:0:0]
	for _, a := range actions {
		if _, ok := seen[a.ID]; !ok {
			fresh = append(fresh, a)
		}
	}
	if len(fresh) == 0 {
		return nil
	}

	for start := 0; start < len(fresh); start += d.cfg.SubChunkSize {
		end := start + d.cfg.SubChunkSize
		if end > len(fresh) {
			end = len(fresh)
		}
		if err := d.sink.Dispatch(ctx, fresh[start:end], d.kind.Admin(), d.kind.Live()); err != nil {
			return fmt.Errorf("dispatch backlog sub-chunk: %w", err)
		}
	}

	freshIDs := make([]string, len(fresh))
	for i, a := range fresh {
		freshIDs[i] = a.ID
	}
	d.cache.SetMulti(ctx, freshIDs)
	return nil
}

// Buffered returns the number of records waiting in the live buffer
func (d *Dispatcher) Buffered() int {
	return len(d.buf)
}
