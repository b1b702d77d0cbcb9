package worker

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-practice/internal/config"
	"github.com/stemsi/exstem-practice/internal/model"
	"github.com/stemsi/exstem-practice/internal/repository"
)

// AnswersPayload is one buffered answer snapshot of a session.
type AnswersPayload struct {
	SessionID string        `json:"session_id"`
	Answers   model.Answers `json:"answers"`
	// Seq orders snapshots of the same session; the highest wins.
	Seq int64 `json:"seq"`
}

// AnswerWriter persists answer snapshots.
type AnswerWriter interface {
	BulkUpdateAnswers(ctx context.Context, ids []uuid.UUID, answers []model.Answers) error
	UpdateAnswers(ctx context.Context, id uuid.UUID, answers model.Answers) error
}

// AutosaveWorker consumes persist_answers_queue and writes the latest
// snapshot of every session to PostgreSQL.
type AutosaveWorker struct {
	writer AnswerWriter
	rdb    *redis.Client
	loop   *batchLoop[AnswersPayload]
	log    zerolog.Logger
}

// NewAutosaveWorker creates a new AutosaveWorker.
func NewAutosaveWorker(writer AnswerWriter, rdb *redis.Client, log zerolog.Logger) *AutosaveWorker {
	w := &AutosaveWorker{
		writer: writer,
		rdb:    rdb,
		log:    log.With().Str("component", "autosave_worker").Logger(),
	}
	w.loop = newBatchLoop(rdb, w.log, config.WorkerKey.PersistAnswersQueue, w.flush)
	return w
}

// Start begins the worker loop. Call in a goroutine.
func (w *AutosaveWorker) Start(ctx context.Context) {
	w.log.Info().Msg("AutosaveWorker started")
	w.loop.run(ctx)
}

// latestSnapshots keeps the highest-seq snapshot per session, in first-seen order.
func latestSnapshots(batch []AnswersPayload) []AnswersPayload {
	idx := make(map[string]int, len(batch))
	out := make([]AnswersPayload, 0, len(batch))
	for _, p := range batch {
		if i, ok := idx[p.SessionID]; ok {
			if p.Seq >= out[i].Seq {
				out[i] = p
			}
			continue
		}
		idx[p.SessionID] = len(out)
		out = append(out, p)
	}
	return out
}

// dropSuperseded removes snapshots older than the session's current seq.
// A requeued snapshot must not overwrite a newer one already written.
// When the seq keys cannot be read the batch is kept as is.
func (w *AutosaveWorker) dropSuperseded(ctx context.Context, batch []AnswersPayload) []AnswersPayload {
	if len(batch) == 0 {
		return batch
	}
	cmds := make([]*redis.StringCmd, len(batch))
	_, err := w.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, p := range batch {
			cmds[i] = pipe.Get(ctx, config.CacheKey.SessionSeqKey(p.SessionID))
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		w.log.Warn().Err(err).Msg("Reading snapshot seqs failed, keeping batch")
		return batch
	}

	out := batch[:0:0]
	for i, p := range batch {
		current, err := cmds[i].Int64()
		if err == nil && p.Seq < current {
			w.log.Debug().Str("session_id", p.SessionID).Int64("seq", p.Seq).Int64("current", current).Msg("Dropping superseded snapshot")
			continue
		}
		out = append(out, p)
	}
	return out
}

func (w *AutosaveWorker) flush(ctx context.Context, batch []AnswersPayload) []AnswersPayload {
	latest := w.dropSuperseded(ctx, latestSnapshots(batch))

	ids := make([]uuid.UUID, 0, len(latest))
	answers := make([]model.Answers, 0, len(latest))
	valid := make([]AnswersPayload, 0, len(latest))
	for _, p := range latest {
		id, err := uuid.Parse(p.SessionID)
		if err != nil {
			w.log.Error().Str("session_id", p.SessionID).Msg("Dropping snapshot with invalid UUID")
			continue
		}
		ids = append(ids, id)
		answers = append(answers, p.Answers)
		valid = append(valid, p)
	}
	if len(valid) == 0 {
		return nil
	}

	err := w.writer.BulkUpdateAnswers(ctx, ids, answers)
	if err == nil {
		w.log.Debug().Int("count", len(valid)).Msg("Persisted answer snapshots")
		return nil
	}
	w.log.Warn().Err(err).Int("count", len(valid)).Msg("Bulk answer update failed, attempting row-by-row recovery")

	var failed []AnswersPayload
	for i, p := range valid {
		err := w.writer.UpdateAnswers(ctx, ids[i], p.Answers)
		switch {
		case err == nil:
		case errors.Is(err, repository.ErrNotInProgress):
			// Finalized meanwhile; the terminal write already holds the answers.
		default:
			w.log.Error().Err(err).Str("session_id", p.SessionID).Msg("Answer update failed, requeueing")
			failed = append(failed, p)
		}
	}
	return failed
}
