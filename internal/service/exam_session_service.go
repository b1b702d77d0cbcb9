package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-practice/internal/config"
	"github.com/stemsi/exstem-practice/internal/engine"
	"github.com/stemsi/exstem-practice/internal/model"
	"github.com/stemsi/exstem-practice/internal/response"
	"github.com/stemsi/exstem-practice/internal/setup"
)

// Domain Errors
var (
	ErrNotOwner            = errors.New("exam session belongs to another user")
	ErrSessionNotCompleted = errors.New("exam session is not completed")
	ErrSessionTakenOver    = errors.New("exam session was opened by another connection")
)

// releasedPrefix marks the reply a connection publishes once its runner
// has stopped and flushed, so the taker loads the newest answers.
const releasedPrefix = "released:"

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// SessionBuilder draws the questions of a new session.
type SessionBuilder interface {
	Build(ctx context.Context, req setup.Request) (*model.ExamSession, error)
}

// SessionWriter persists new sessions and lists history.
type SessionWriter interface {
	Create(ctx context.Context, s *model.ExamSession) error
	ListByOwner(ctx context.Context, ownerID, page, perPage int) ([]model.SessionSummary, int64, error)
}

// StatsReader reads per-module aggregates.
type StatsReader interface {
	Get(ctx context.Context, ownerID int, module string) (*model.ModuleStats, error)
	ListByOwner(ctx context.Context, ownerID int) ([]model.ModuleStats, error)
}

// ActivityReader reads the activity log of a session.
type ActivityReader interface {
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]engine.Activity, error)
}

// ExamSessionService handles exam session business logic.
type ExamSessionService struct {
	builder  SessionBuilder
	sessions SessionWriter
	store    engine.Store
	stats    StatsReader
	activity ActivityReader
	recorder engine.ActivitySink
	rdb      *redis.Client
	cfg      *config.Config
	log      zerolog.Logger

	mu   sync.Mutex
	live map[uuid.UUID]*LiveSession
}

// NewExamSessionService creates a new ExamSessionService.
func NewExamSessionService(
	builder SessionBuilder,
	sessions SessionWriter,
	store engine.Store,
	stats StatsReader,
	activity ActivityReader,
	recorder engine.ActivitySink,
	rdb *redis.Client,
	cfg *config.Config,
	log zerolog.Logger,
) *ExamSessionService {
	return &ExamSessionService{
		builder:  builder,
		sessions: sessions,
		store:    store,
		stats:    stats,
		activity: activity,
		recorder: recorder,
		rdb:      rdb,
		cfg:      cfg,
		log:      log.With().Str("component", "exam_session_service").Logger(),
		live:     make(map[uuid.UUID]*LiveSession),
	}
}

// ─── Setup & history ────────────────────────────────────────────────

// Create builds and stores a new session for the user.
func (s *ExamSessionService) Create(ctx context.Context, userID int, req model.CreateSessionRequest) (*model.ExamSession, error) {
	sess, err := s.builder.Build(ctx, setup.Request{
		OwnerID:          userID,
		Module:           req.Module,
		ExamType:         model.ExamType(req.ExamType),
		TimeLimitMinutes: req.TimeLimitMinutes,
		QuestionCount:    req.QuestionCount,
		Seed:             req.Seed,
	})
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.log.Info().
		Str("session_id", sess.ID.String()).
		Int("user_id", userID).
		Str("module", sess.Module).
		Str("exam_type", string(sess.ExamType)).
		Int("questions", sess.TotalQuestions).
		Msg("Exam session created")
	return sess, nil
}

// List returns a page of the user's session history, newest first.
func (s *ExamSessionService) List(ctx context.Context, userID, page, perPage int) ([]model.SessionSummary, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}

	sessions, total, err := s.sessions.ListByOwner(ctx, userID, page, perPage)
	if err != nil {
		return nil, nil, err
	}
	if sessions == nil {
		sessions = []model.SessionSummary{}
	}
	return sessions, response.NewPagination(page, perPage, total), nil
}

// owned loads a session and checks it belongs to userID.
func (s *ExamSessionService) owned(ctx context.Context, userID int, id uuid.UUID) (*model.ExamSession, error) {
	sess, err := s.store.LoadSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.OwnerID != userID {
		return nil, ErrNotOwner
	}
	return sess, nil
}

// Paper returns the session without correct answers.
func (s *ExamSessionService) Paper(ctx context.Context, userID int, id uuid.UUID) (*model.SessionPaper, error) {
	sess, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return sess.Paper(), nil
}

// Results returns the graded outcome of a completed session.
func (s *ExamSessionService) Results(ctx context.Context, userID int, id uuid.UUID) (*engine.Result, error) {
	sess, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if sess.Status != model.SessionStatusCompleted {
		return nil, ErrSessionNotCompleted
	}
	return engine.ResultFromSession(sess)
}

// Activity returns the recorded activity of a session.
func (s *ExamSessionService) Activity(ctx context.Context, userID int, id uuid.UUID) ([]engine.Activity, error) {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return nil, err
	}
	return s.activity.ListBySession(ctx, id)
}

// ModuleStats returns the aggregate of one module for the user.
func (s *ExamSessionService) ModuleStats(ctx context.Context, userID int, module string) (*model.ModuleStats, error) {
	return s.stats.Get(ctx, userID, module)
}

// AllModuleStats returns every module aggregate of the user.
func (s *ExamSessionService) AllModuleStats(ctx context.Context, userID int) ([]model.ModuleStats, error) {
	return s.stats.ListByOwner(ctx, userID)
}

// ─── Live sessions ──────────────────────────────────────────────────

// LiveSession is a runner bound to one connection. Evicted closes when
// another connection opens the same session, on this instance or another.
type LiveSession struct {
	*engine.Runner
	token   string
	evicted chan struct{}
	once    sync.Once
	sub     *redis.PubSub
	mu      sync.Mutex
}

// Evicted is closed when the session was taken over by another connection.
func (l *LiveSession) Evicted() <-chan struct{} {
	return l.evicted
}

func (l *LiveSession) evict() {
	l.once.Do(func() { close(l.evicted) })
}

// stop closes the runner if it has started.
func (l *LiveSession) stop() {
	l.mu.Lock()
	runner := l.Runner
	l.mu.Unlock()
	if runner != nil {
		runner.Close()
	}
}

// Open starts the engine for a session owned by userID. The runner lives
// until ctx is cancelled or Release is called.
func (s *ExamSessionService) Open(ctx context.Context, userID int, id uuid.UUID, observer engine.Observer) (*LiveSession, error) {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return nil, err
	}

	channel := config.CacheKey.SessionControlChannel(id.String())
	sub := s.rdb.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe session control: %w", err)
	}

	live := &LiveSession{
		token:   uuid.New().String(),
		evicted: make(chan struct{}),
		sub:     sub,
	}

	// Other connections of this session step down on this message.
	receivers, err := s.rdb.Publish(ctx, channel, live.token).Result()
	if err != nil {
		s.log.Warn().Err(err).Str("session_id", id.String()).Msg("Failed to announce session takeover")
	}
	s.mu.Lock()
	prev := s.live[id]
	s.live[id] = live
	s.mu.Unlock()
	if prev != nil {
		prev.evict()
		prev.stop()
	}

	// Our own subscription is one of the receivers.
	if err == nil {
		if err := s.awaitReleases(ctx, id, live, int(receivers)-1); err != nil {
			s.Release(id, live)
			return nil, err
		}
	}

	runner, err := engine.Start(ctx, s.store, id,
		engine.WithLogger(s.log),
		engine.WithObserver(observer),
		engine.WithActivitySink(s.recorder),
		engine.WithAutosaveSchedule(engine.AutosaveSchedule{
			LongExam: s.cfg.LongExamAutosave,
			Default:  s.cfg.Autosave,
		}),
		engine.WithPersistTimeout(s.cfg.PersistTimeout),
	)
	if err != nil {
		s.Release(id, live)
		return nil, err
	}
	live.mu.Lock()
	live.Runner = runner
	live.mu.Unlock()

	go s.watchTakeover(live)
	return live, nil
}

// awaitReleases waits until the other connections of the session confirm
// their runners stopped. A connection that never answers delays the open by
// at most PersistTimeout plus a second.
func (s *ExamSessionService) awaitReleases(ctx context.Context, id uuid.UUID, live *LiveSession, others int) error {
	log := s.log.With().Str("session_id", id.String()).Logger()
	channel := config.CacheKey.SessionControlChannel(id.String())
	timeout := time.NewTimer(s.cfg.PersistTimeout + time.Second)
	defer timeout.Stop()

	announced := false
	for released := 0; !announced || released < others; {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout.C:
			log.Warn().Int("pending", others-released).Msg("Previous connection did not confirm release")
			return nil
		case msg, ok := <-live.sub.Channel():
			if !ok {
				return ErrSessionTakenOver
			}
			switch {
			case msg.Payload == live.token:
				announced = true
			case msg.Payload == releasedPrefix+live.token:
				released++
			case strings.HasPrefix(msg.Payload, releasedPrefix):
			case !announced:
				// An older opener counted this subscription; nothing runs here yet.
				s.publishRelease(channel, msg.Payload)
			default:
				s.publishRelease(channel, msg.Payload)
				log.Info().Msg("Session opened elsewhere while connecting")
				return ErrSessionTakenOver
			}
		}
	}
	return nil
}

func (s *ExamSessionService) publishRelease(channel, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.PersistTimeout)
	defer cancel()
	if err := s.rdb.Publish(ctx, channel, releasedPrefix+token).Err(); err != nil {
		s.log.Warn().Err(err).Str("channel", channel).Msg("Failed to confirm session release")
	}
}

// watchTakeover stops the runner when another connection opens the
// session and confirms once the final flush is done. It keeps answering
// later takers until the subscription closes.
func (s *ExamSessionService) watchTakeover(live *LiveSession) {
	channel := config.CacheKey.SessionControlChannel(live.ID().String())
	for msg := range live.sub.Channel() {
		if msg.Payload == live.token || strings.HasPrefix(msg.Payload, releasedPrefix) {
			continue
		}
		s.log.Info().Str("session_id", live.ID().String()).Msg("Session opened elsewhere, closing this connection")
		live.evict()
		live.stop()
		s.publishRelease(channel, msg.Payload)
	}
}

// Release stops the runner of live and forgets it.
func (s *ExamSessionService) Release(id uuid.UUID, live *LiveSession) {
	s.mu.Lock()
	if s.live[id] == live {
		delete(s.live, id)
	}
	s.mu.Unlock()

	live.stop()
	_ = live.sub.Close()
}

// CloseAll stops every live runner. Used on shutdown.
func (s *ExamSessionService) CloseAll() {
	s.mu.Lock()
	live := s.live
	s.live = make(map[uuid.UUID]*LiveSession)
	s.mu.Unlock()

	for _, l := range live {
		l.stop()
		_ = l.sub.Close()
	}
}
