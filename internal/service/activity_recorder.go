package service

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-practice/internal/config"
	"github.com/stemsi/exstem-practice/internal/engine"
	"github.com/stemsi/exstem-practice/internal/worker"
)

// activityBuffer is the number of entries held while Redis is slow.
const activityBuffer = 1024

// ActivityRecorder is an engine.ActivitySink that hands entries to the
// activity persist queue from its own goroutine.
type ActivityRecorder struct {
	rdb     redis.Cmdable
	log     zerolog.Logger
	entries chan engine.Activity
}

var _ engine.ActivitySink = (*ActivityRecorder)(nil)

// NewActivityRecorder creates a new ActivityRecorder. Call Run to drain it.
func NewActivityRecorder(rdb redis.Cmdable, log zerolog.Logger) *ActivityRecorder {
	return &ActivityRecorder{
		rdb:     rdb,
		log:     log.With().Str("component", "activity_recorder").Logger(),
		entries: make(chan engine.Activity, activityBuffer),
	}
}

// Record queues a without blocking. Entries are dropped when the buffer is full.
func (r *ActivityRecorder) Record(a engine.Activity) {
	select {
	case r.entries <- a:
	default:
		r.log.Warn().Str("session_id", a.SessionID.String()).Str("kind", string(a.Kind)).Msg("Activity buffer full, dropping entry")
	}
}

// Run pushes recorded entries to Redis until ctx is cancelled, then drains
// what is still buffered.
func (r *ActivityRecorder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			r.drain()
			return
		case a := <-r.entries:
			r.push(ctx, a)
		}
	}
}

func (r *ActivityRecorder) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), worker.ShutdownTimeout)
	defer cancel()
	for {
		select {
		case a := <-r.entries:
			r.push(ctx, a)
		default:
			return
		}
	}
}

func (r *ActivityRecorder) push(ctx context.Context, a engine.Activity) {
	if err := worker.Enqueue(ctx, r.rdb, config.WorkerKey.PersistActivityQueue, a); err != nil {
		r.log.Error().Err(err).Str("session_id", a.SessionID.String()).Msg("Failed to queue activity")
	}
}
