package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	BatchSize       = 50
	BatchTimeout    = 2 * time.Second
	PollTimeout     = 1 * time.Second // Must be >= 1s to satisfy Redis
	ShutdownTimeout = 5 * time.Second
)

// Enqueue pushes v as JSON onto a persist queue.
func Enqueue(ctx context.Context, rdb redis.Cmdable, queue string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return rdb.RPush(ctx, queue, raw).Err()
}

// batchLoop drains a Redis list into batches of T. flush receives a full
// batch and returns the items that must go back to the queue.
type batchLoop[T any] struct {
	rdb          *redis.Client
	log          zerolog.Logger
	queue        string
	size         int
	timeout      time.Duration
	errorBackoff time.Duration
	flush        func(ctx context.Context, batch []T) []T
}

func newBatchLoop[T any](rdb *redis.Client, log zerolog.Logger, queue string, flush func(context.Context, []T) []T) *batchLoop[T] {
	return &batchLoop[T]{
		rdb:          rdb,
		log:          log,
		queue:        queue,
		size:         BatchSize,
		timeout:      BatchTimeout,
		errorBackoff: 2 * time.Second,
		flush:        flush,
	}
}

func (b *batchLoop[T]) run(ctx context.Context) {
	buffer := make([]T, 0, b.size)
	lastFlush := time.Now()

	for {
		// 1. Flush on size or age
		if len(buffer) > 0 && (len(buffer) >= b.size || time.Since(lastFlush) >= b.timeout) {
			b.flushSafe(ctx, buffer)
			buffer = buffer[:0]
			lastFlush = time.Now()
		}

		// 2. Graceful shutdown
		select {
		case <-ctx.Done():
			b.shutdown(buffer)
			return
		default:
		}

		// 3. Fetch
		result, err := b.rdb.BLPop(ctx, PollTimeout, b.queue).Result()
		if err != nil {
			if err == redis.Nil || ctx.Err() != nil {
				continue
			}
			b.log.Error().Err(err).Msg("Redis connection error, backing off")
			b.sleep(ctx)
			continue
		}
		if len(result) < 2 {
			continue
		}

		var item T
		if err := json.Unmarshal([]byte(result[1]), &item); err != nil {
			// Malformed JSON can never succeed; discard.
			b.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed JSON")
			continue
		}
		buffer = append(buffer, item)
	}
}

func (b *batchLoop[T]) flushSafe(ctx context.Context, batch []T) {
	if len(batch) == 0 {
		return
	}
	failed := b.flush(ctx, batch)
	if len(failed) > 0 {
		b.requeue(ctx, failed)
	}
}

func (b *batchLoop[T]) requeue(ctx context.Context, items []T) {
	pipe := b.rdb.Pipeline()
	for _, it := range items {
		raw, _ := json.Marshal(it)
		pipe.RPush(ctx, b.queue, raw)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		b.log.Error().Err(err).Int("count", len(items)).Msg("CRITICAL: Failed to requeue items to Redis. Data loss occurred.")
		return
	}
	b.log.Info().Int("count", len(items)).Msg("Requeued failed items back to Redis")
	// Avoid thrashing while the database is down.
	b.sleep(ctx)
}

func (b *batchLoop[T]) sleep(ctx context.Context) {
	t := time.NewTimer(b.errorBackoff)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func (b *batchLoop[T]) shutdown(buffer []T) {
	b.log.Info().Int("pending", len(buffer)).Msg("Worker stopping, flushing remaining buffer...")

	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	b.flushSafe(ctx, buffer)
	b.log.Info().Msg("Worker stopped")
}
