package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-practice/internal/model"
)

// Store is the persistence collaborator of the engine.
type Store interface {
	LoadSession(ctx context.Context, id uuid.UUID) (*model.ExamSession, error)
	UpdateAnswers(ctx context.Context, id uuid.UUID, answers model.Answers) error
	// UpdatePosition raises the stored strict-mode pointer; it never lowers it.
	UpdatePosition(ctx context.Context, id uuid.UUID, index int) error
	// FinalizeSession applies the terminal write atomically. It returns
	// ErrSessionCompleted when the row was already finalized.
	FinalizeSession(ctx context.Context, id uuid.UUID, fin model.Finalization) error
}

// Result is the outcome handed to the results viewer.
type Result struct {
	SessionID           uuid.UUID                   `json:"session_id"`
	Score               int                         `json:"score"`
	TotalQuestions      int                         `json:"total_questions"`
	TimeSpentSeconds    int                         `json:"time_spent_seconds"`
	QuestionPerformance []model.QuestionPerformance `json:"question_performance"`
	CompletedAt         time.Time                   `json:"completed_at"`
	AutoSubmitted       bool                        `json:"auto_submitted"`
}

// ResultFromSession extracts the result of a completed session.
func ResultFromSession(s *model.ExamSession) (*Result, error) {
	if s.Status != model.SessionStatusCompleted {
		return nil, fmt.Errorf("session %s is %s", s.ID, s.Status)
	}
	r := &Result{
		SessionID:           s.ID,
		TotalQuestions:      s.TotalQuestions,
		QuestionPerformance: s.QuestionPerformance,
		AutoSubmitted:       s.AutoSubmitted,
	}
	if s.Score != nil {
		r.Score = *s.Score
	}
	if s.TimeSpentSeconds != nil {
		r.TimeSpentSeconds = *s.TimeSpentSeconds
	}
	if s.CompletedAt != nil {
		r.CompletedAt = *s.CompletedAt
	}
	return r, nil
}

// Validate checks the invariants a loaded session must satisfy.
func Validate(s *model.ExamSession) error {
	if !s.ExamType.Valid() {
		return fmt.Errorf("%w: unknown exam type %q", ErrInvalidSession, s.ExamType)
	}
	if s.TotalQuestions <= 0 || s.TotalQuestions != len(s.Questions) {
		return fmt.Errorf("%w: total_questions=%d but %d questions",
			ErrInvalidSession, s.TotalQuestions, len(s.Questions))
	}
	timed := s.TimeLimitMinutes != nil
	if timed != s.ExamType.Timed() {
		return fmt.Errorf("%w: time limit presence does not match exam type %s", ErrInvalidSession, s.ExamType)
	}
	if timed && *s.TimeLimitMinutes <= 0 {
		return fmt.Errorf("%w: non-positive time limit", ErrInvalidSession)
	}
	for idx, opt := range s.Answers {
		if idx < 0 || idx >= s.TotalQuestions {
			return fmt.Errorf("%w: answer for index %d", ErrInvalidSession, idx)
		}
		if !opt.Valid() {
			return fmt.Errorf("%w: option %q at index %d", ErrInvalidSession, opt, idx)
		}
	}
	return nil
}

// resumeIndex picks the pointer for a reopened session. Strict sessions
// resume at the stored pointer or the furthest answered question, whichever
// is further, so the pointer never moves back across reconnects.
func resumeIndex(s *model.ExamSession) int {
	if s.ExamType != model.ExamTypeStrict {
		return 0
	}
	furthest := s.CurrentIndex
	for idx := range s.Answers {
		if idx > furthest {
			furthest = idx
		}
	}
	return furthest
}

// complete applies fin to s in a single step so readers never see a
// completed status without its score.
func complete(s *model.ExamSession, fin model.Finalization) {
	completedAt := fin.CompletedAt
	score := fin.Score
	spent := fin.TimeSpentSeconds
	s.Answers = fin.Answers
	s.Status = model.SessionStatusCompleted
	s.CompletedAt = &completedAt
	s.Score = &score
	s.TimeSpentSeconds = &spent
	s.QuestionPerformance = fin.QuestionPerformance
	s.AutoSubmitted = fin.AutoSubmitted
}
