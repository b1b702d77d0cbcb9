// Package setup assembles the question set of a new exam session.
package setup

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-practice/internal/model"
)

// Domain Errors
var (
	ErrInsufficientQuestions = errors.New("not enough approved questions")
	ErrInvalidTimeLimit      = errors.New("time limit is required for timed exams and forbidden for practice")
	ErrInvalidExamType       = errors.New("unknown exam type")
	ErrInvalidQuestionCount  = errors.New("question count must be positive")
)

// CombinedExamSize is the question count that triggers the fixed distribution.
const CombinedExamSize = 300

// Quota is the number of questions drawn from one module.
type Quota struct {
	Module string
	Count  int
}

// CombinedDistribution is the per-module split of a full combined exam.
var CombinedDistribution = []Quota{
	{Module: "quantitative", Count: 100},
	{Module: "logical", Count: 75},
	{Module: "verbal", Count: 75},
	{Module: "general", Count: 50},
}

// QuestionSource reads the approved question pool.
type QuestionSource interface {
	// ApprovedIDs lists approved questions of module; model.ModuleCombined
	// lists the whole approved pool.
	ApprovedIDs(ctx context.Context, module string) ([]uuid.UUID, error)
	QuestionsByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Question, error)
}

// Request describes the exam to assemble.
type Request struct {
	OwnerID          int
	Module           string
	ExamType         model.ExamType
	TimeLimitMinutes *int
	QuestionCount    int
	// Seed makes the draw reproducible when set.
	Seed *int64
}

// Option configures a Builder.
type Option func(*Builder)

// WithClock sets the clock that stamps StartedAt.
func WithClock(c clockwork.Clock) Option {
	return func(b *Builder) { b.clock = c }
}

// Builder draws questions and produces a fresh in-progress session.
type Builder struct {
	source QuestionSource
	clock  clockwork.Clock
	log    zerolog.Logger
}

// NewBuilder creates a Builder reading from source.
func NewBuilder(source QuestionSource, log zerolog.Logger, opts ...Option) *Builder {
	b := &Builder{
		source: source,
		clock:  clockwork.NewRealClock(),
		log:    log.With().Str("component", "exam_setup").Logger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build validates req, draws its questions and returns an unsaved session.
func (b *Builder) Build(ctx context.Context, req Request) (*model.ExamSession, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	rng := b.rng(req.Seed)

	var (
		ids []uuid.UUID
		err error
	)
	if req.Module == model.ModuleCombined && req.QuestionCount == CombinedExamSize {
		ids, err = b.drawCombined(ctx, rng)
	} else {
		ids, err = b.draw(ctx, rng, req.Module, req.QuestionCount)
	}
	if err != nil {
		return nil, err
	}

	questions, err := b.load(ctx, ids)
	if err != nil {
		return nil, err
	}

	var limit *int
	if req.ExamType.Timed() {
		v := *req.TimeLimitMinutes
		limit = &v
	}

	s := &model.ExamSession{
		ID:               uuid.New(),
		OwnerID:          req.OwnerID,
		Module:           req.Module,
		ExamType:         req.ExamType,
		TimeLimitMinutes: limit,
		TotalQuestions:   len(questions),
		Questions:        questions,
		Answers:          model.Answers{},
		StartedAt:        b.clock.Now().UTC(),
		Status:           model.SessionStatusInProgress,
	}

	b.log.Info().
		Str("session_id", s.ID.String()).
		Int("owner_id", req.OwnerID).
		Str("module", req.Module).
		Str("exam_type", string(req.ExamType)).
		Int("total_questions", s.TotalQuestions).
		Msg("Exam session assembled")

	return s, nil
}

func validate(req Request) error {
	if !req.ExamType.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidExamType, req.ExamType)
	}
	if req.QuestionCount <= 0 {
		return ErrInvalidQuestionCount
	}
	hasLimit := req.TimeLimitMinutes != nil
	if hasLimit != req.ExamType.Timed() {
		return ErrInvalidTimeLimit
	}
	if hasLimit && *req.TimeLimitMinutes <= 0 {
		return ErrInvalidTimeLimit
	}
	return nil
}

func (b *Builder) rng(seed *int64) *rand.Rand {
	if seed != nil {
		return rand.New(rand.NewSource(*seed))
	}
	return rand.New(rand.NewSource(b.clock.Now().UnixNano()))
}

// draw samples n ids uniformly without replacement.
func (b *Builder) draw(ctx context.Context, rng *rand.Rand, module string, n int) ([]uuid.UUID, error) {
	pool, err := b.source.ApprovedIDs(ctx, module)
	if err != nil {
		return nil, fmt.Errorf("list approved questions of %s: %w", module, err)
	}
	if len(pool) < n {
		return nil, fmt.Errorf("%w: module %s has %d, requested %d", ErrInsufficientQuestions, module, len(pool), n)
	}

	shuffled := make([]uuid.UUID, len(pool))
	copy(shuffled, pool)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled[:n], nil
}

func (b *Builder) drawCombined(ctx context.Context, rng *rand.Rand) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, CombinedExamSize)
	for _, q := range CombinedDistribution {
		part, err := b.draw(ctx, rng, q.Module, q.Count)
		if err != nil {
			return nil, err
		}
		ids = append(ids, part...)
	}
	rng.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})
	return ids, nil
}

// load fetches the drawn questions and keeps the drawn order.
func (b *Builder) load(ctx context.Context, ids []uuid.UUID) ([]model.Question, error) {
	found, err := b.source.QuestionsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	byID := make(map[uuid.UUID]model.Question, len(found))
	for _, q := range found {
		byID[q.ID] = q
	}

	out := make([]model.Question, len(ids))
	for i, id := range ids {
		q, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: question %s is no longer available", ErrInsufficientQuestions, id)
		}
		out[i] = q
	}
	return out, nil
}
