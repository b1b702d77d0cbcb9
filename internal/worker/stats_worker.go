package worker

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-practice/internal/config"
	"github.com/stemsi/exstem-practice/internal/model"
)

// StatsWriter applies module aggregate increments.
type StatsWriter interface {
	BulkApply(ctx context.Context, deltas []model.ModuleStatsDelta) error
	Apply(ctx context.Context, d model.ModuleStatsDelta) error
}

// StatsWorker consumes persist_stats_queue and folds completed attempts
// into user_module_stats.
type StatsWorker struct {
	writer StatsWriter
	loop   *batchLoop[model.AttemptOutcome]
	log    zerolog.Logger
}

// NewStatsWorker creates a new StatsWorker.
func NewStatsWorker(writer StatsWriter, rdb *redis.Client, log zerolog.Logger) *StatsWorker {
	w := &StatsWorker{
		writer: writer,
		log:    log.With().Str("component", "stats_worker").Logger(),
	}
	w.loop = newBatchLoop(rdb, w.log, config.WorkerKey.PersistStatsQueue, w.flush)
	return w
}

// Start begins the worker loop. Call in a goroutine.
func (w *StatsWorker) Start(ctx context.Context) {
	w.log.Info().Msg("StatsWorker started")
	w.loop.run(ctx)
}

type statsKey struct {
	owner  int
	module string
}

// aggregate folds outcomes into one delta per (owner, module).
func aggregate(batch []model.AttemptOutcome) []model.ModuleStatsDelta {
	idx := make(map[statsKey]int, len(batch))
	out := make([]model.ModuleStatsDelta, 0, len(batch))
	for _, o := range batch {
		k := statsKey{o.OwnerID, o.Module}
		i, ok := idx[k]
		if !ok {
			idx[k] = len(out)
			out = append(out, deltaOf(o))
			continue
		}
		d := &out[i]
		d.Attempts++
		d.TotalCorrect += o.Score
		d.TotalQuestions += o.TotalQuestions
		if o.Score > d.BestScore {
			d.BestScore = o.Score
		}
		if o.CompletedAt.After(d.LastCompletedAt) {
			d.LastCompletedAt = o.CompletedAt
		}
	}
	return out
}

func deltaOf(o model.AttemptOutcome) model.ModuleStatsDelta {
	return model.ModuleStatsDelta{
		OwnerID:         o.OwnerID,
		Module:          o.Module,
		Attempts:        1,
		BestScore:       o.Score,
		TotalCorrect:    o.Score,
		TotalQuestions:  o.TotalQuestions,
		LastCompletedAt: o.CompletedAt,
	}
}

func (w *StatsWorker) flush(ctx context.Context, batch []model.AttemptOutcome) []model.AttemptOutcome {
	deltas := aggregate(batch)
	err := w.writer.BulkApply(ctx, deltas)
	if err == nil {
		return nil
	}
	w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk stats upsert failed, using fallback")

	// One outcome at a time so a requeue never double counts a stored one.
	var failed []model.AttemptOutcome
	for _, o := range batch {
		if err := w.writer.Apply(ctx, deltaOf(o)); err != nil {
			w.log.Error().Err(err).Int("owner_id", o.OwnerID).Str("module", o.Module).Msg("Stats upsert failed, requeueing")
			failed = append(failed, o)
		}
	}
	return failed
}
