package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-practice/internal/config"
	"github.com/stemsi/exstem-practice/internal/engine"
	"github.com/stemsi/exstem-practice/internal/model"
	"github.com/stemsi/exstem-practice/internal/repository"
	"github.com/stemsi/exstem-practice/internal/worker"
)

// SessionRepository is the PostgreSQL side of the session store.
type SessionRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error)
	UpdateAnswers(ctx context.Context, id uuid.UUID, answers model.Answers) error
	UpdatePosition(ctx context.Context, id uuid.UUID, index int) error
	Finalize(ctx context.Context, id uuid.UUID, fin model.Finalization) (*repository.FinalizedSession, error)
}

// SessionStore implements engine.Store. PostgreSQL is the source of truth;
// answer snapshots go through a Redis hash and the persist queue so an
// autosave never waits on the database.
type SessionStore struct {
	repo SessionRepository
	rdb  redis.Cmdable
	ttl  time.Duration
	log  zerolog.Logger
}

var _ engine.Store = (*SessionStore)(nil)

// NewSessionStore creates a new SessionStore. ttl bounds how long an
// unpersisted snapshot stays in Redis.
func NewSessionStore(repo SessionRepository, rdb redis.Cmdable, ttl time.Duration, log zerolog.Logger) *SessionStore {
	return &SessionStore{
		repo: repo,
		rdb:  rdb,
		ttl:  ttl,
		log:  log.With().Str("component", "session_store").Logger(),
	}
}

// LoadSession reads the session and overlays the buffered answers of an
// in-progress session, which are never older than the row.
func (s *SessionStore) LoadSession(ctx context.Context, id uuid.UUID) (*model.ExamSession, error) {
	sess, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", engine.ErrSessionNotFound, id)
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess.Status != model.SessionStatusInProgress {
		return sess, nil
	}

	buffered, err := s.bufferedAnswers(ctx, id)
	if err != nil {
		// The row is still consistent; it only misses the newest snapshot.
		s.log.Warn().Err(err).Str("session_id", id.String()).Msg("Answer buffer unavailable, using stored answers")
		return sess, nil
	}
	if buffered != nil {
		sess.Answers = buffered
	}
	return sess, nil
}

func (s *SessionStore) bufferedAnswers(ctx context.Context, id uuid.UUID) (model.Answers, error) {
	raw, err := s.rdb.HGetAll(ctx, config.CacheKey.SessionAnswersKey(id.String())).Result()
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	answers := make(model.Answers, len(raw))
	for field, value := range raw {
		idx, err := strconv.Atoi(field)
		if err != nil {
			s.log.Warn().Str("session_id", id.String()).Str("field", field).Msg("Skipping malformed buffered answer")
			continue
		}
		answers[idx] = model.Option(value)
	}
	return answers, nil
}

// UpdateAnswers replaces the buffered snapshot and queues it for the
// autosave worker. When Redis is unreachable it writes through to PostgreSQL.
func (s *SessionStore) UpdateAnswers(ctx context.Context, id uuid.UUID, answers model.Answers) error {
	sid := id.String()
	answersKey := config.CacheKey.SessionAnswersKey(sid)
	seqKey := config.CacheKey.SessionSeqKey(sid)

	fields := make(map[string]any, len(answers))
	for idx, opt := range answers {
		fields[strconv.Itoa(idx)] = string(opt)
	}

	var seq *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, answersKey)
		if len(fields) > 0 {
			pipe.HSet(ctx, answersKey, fields)
			pipe.Expire(ctx, answersKey, s.ttl)
		}
		seq = pipe.Incr(ctx, seqKey)
		pipe.Expire(ctx, seqKey, s.ttl)
		return nil
	})
	if err == nil {
		err = worker.Enqueue(ctx, s.rdb, config.WorkerKey.PersistAnswersQueue, worker.AnswersPayload{
			SessionID: sid,
			Answers:   answers,
			Seq:       seq.Val(),
		})
		if err == nil {
			return nil
		}
	}

	s.log.Warn().Err(err).Str("session_id", sid).Msg("Answer buffer write failed, writing through")
	if err := s.repo.UpdateAnswers(ctx, id, answers); err != nil {
		if errors.Is(err, repository.ErrNotInProgress) {
			return fmt.Errorf("%w: %s", engine.ErrSessionCompleted, sid)
		}
		return fmt.Errorf("update answers: %w", err)
	}
	// A stale buffer must not shadow the row on the next load.
	_ = s.rdb.Del(ctx, answersKey).Err()
	return nil
}

// UpdatePosition writes the strict-mode pointer straight to PostgreSQL.
// It is small and rare enough that it skips the buffer.
func (s *SessionStore) UpdatePosition(ctx context.Context, id uuid.UUID, index int) error {
	if err := s.repo.UpdatePosition(ctx, id, index); err != nil {
		if errors.Is(err, repository.ErrNotInProgress) {
			return fmt.Errorf("%w: %s", engine.ErrSessionCompleted, id)
		}
		return fmt.Errorf("update position: %w", err)
	}
	return nil
}

// FinalizeSession applies the terminal write. A session that is no longer
// in progress yields engine.ErrSessionCompleted.
func (s *SessionStore) FinalizeSession(ctx context.Context, id uuid.UUID, fin model.Finalization) error {
	done, err := s.repo.Finalize(ctx, id, fin)
	if err != nil {
		if errors.Is(err, repository.ErrNotInProgress) {
			return fmt.Errorf("%w: %s", engine.ErrSessionCompleted, id)
		}
		return fmt.Errorf("finalize session: %w", err)
	}

	sid := id.String()
	log := s.log.With().Str("session_id", sid).Logger()

	if err := s.rdb.Del(ctx, config.CacheKey.SessionAnswersKey(sid), config.CacheKey.SessionSeqKey(sid)).Err(); err != nil {
		log.Warn().Err(err).Msg("Failed to clear answer buffer")
	}

	outcome := model.AttemptOutcome{
		OwnerID:        done.OwnerID,
		Module:         done.Module,
		Score:          fin.Score,
		TotalQuestions: done.TotalQuestions,
		CompletedAt:    fin.CompletedAt,
	}
	if err := worker.Enqueue(ctx, s.rdb, config.WorkerKey.PersistStatsQueue, outcome); err != nil {
		log.Error().Err(err).Msg("Failed to queue module stats")
	}
	return nil
}
