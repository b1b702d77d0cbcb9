package worker

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-practice/internal/config"
	"github.com/stemsi/exstem-practice/internal/engine"
)

// ActivityWriter persists session activity entries.
type ActivityWriter interface {
	CopyBatch(ctx context.Context, batch []engine.Activity) error
	Insert(ctx context.Context, a engine.Activity) error
}

// ActivityWorker consumes persist_activity_queue into exam_session_events.
type ActivityWorker struct {
	writer ActivityWriter
	loop   *batchLoop[engine.Activity]
	log    zerolog.Logger
}

// NewActivityWorker creates a new ActivityWorker.
func NewActivityWorker(writer ActivityWriter, rdb *redis.Client, log zerolog.Logger) *ActivityWorker {
	w := &ActivityWorker{
		writer: writer,
		log:    log.With().Str("component", "activity_worker").Logger(),
	}
	w.loop = newBatchLoop(rdb, w.log, config.WorkerKey.PersistActivityQueue, w.flush)
	return w
}

// Start begins the worker loop. Call in a goroutine.
func (w *ActivityWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ActivityWorker started")
	w.loop.run(ctx)
}

// flush tries COPY first, then row-by-row, returning what could not be stored.
func (w *ActivityWorker) flush(ctx context.Context, batch []engine.Activity) []engine.Activity {
	err := w.writer.CopyBatch(ctx, batch)
	if err == nil {
		return nil
	}
	w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")

	var failed []engine.Activity
	for _, a := range batch {
		if err := w.writer.Insert(ctx, a); err != nil {
			w.log.Error().Err(err).Str("session_id", a.SessionID.String()).Msg("Insert failed, requeueing")
			failed = append(failed, a)
		}
	}
	return failed
}
