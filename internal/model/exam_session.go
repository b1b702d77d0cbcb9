package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamType selects the navigation and timing rules of a session.
type ExamType string

const (
	ExamTypeStandard ExamType = "standard"
	ExamTypeStrict   ExamType = "strict"
	ExamTypePractice ExamType = "practice"
)

// Valid reports whether t is one of the known exam types.
func (t ExamType) Valid() bool {
	switch t {
	case ExamTypeStandard, ExamTypeStrict, ExamTypePractice:
		return true
	}
	return false
}

// Timed reports whether sessions of this type run a countdown.
func (t ExamType) Timed() bool {
	return t == ExamTypeStandard || t == ExamTypeStrict
}

// SessionStatus enumerates exam session states.
type SessionStatus string

const (
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusCompleted  SessionStatus = "completed"
)

// ModuleCombined is the module label of an exam drawn across all modules.
const ModuleCombined = "combined"

// Answers maps a 0-based question index to the chosen option.
type Answers map[int]Option

// Clone returns an independent copy of a.
func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// QuestionPerformance is the per-question outcome recorded at submission.
type QuestionPerformance struct {
	QuestionID    uuid.UUID `json:"question_id"`
	QuestionText  string    `json:"question_text"`
	UserAnswer    *Option   `json:"user_answer,omitempty"`
	CorrectAnswer Option    `json:"correct_answer"`
	IsCorrect     bool      `json:"is_correct"`
}

// ExamSession represents a user's exam attempt.
type ExamSession struct {
	ID               uuid.UUID     `json:"id"`
	OwnerID          int           `json:"owner_id"`
	Module           string        `json:"module"`
	ExamType         ExamType      `json:"exam_type"`
	TimeLimitMinutes *int          `json:"time_limit_minutes,omitempty"`
	TotalQuestions   int           `json:"total_questions"`
	Questions        []Question    `json:"questions"`
	Answers          Answers       `json:"answers"`
	StartedAt        time.Time     `json:"started_at"`
	Status           SessionStatus `json:"status"`

	// CurrentIndex is the furthest pointer a strict session has reached.
	CurrentIndex int `json:"current_index"`

	// Set together, exactly once, when the session is finalized.
	CompletedAt         *time.Time            `json:"completed_at,omitempty"`
	Score               *int                  `json:"score,omitempty"`
	TimeSpentSeconds    *int                  `json:"time_spent_seconds,omitempty"`
	QuestionPerformance []QuestionPerformance `json:"question_performance,omitempty"`
	AutoSubmitted       bool                  `json:"auto_submitted"`
}

// Finalization is the terminal write applied to a session on submission.
type Finalization struct {
	Answers             Answers               `json:"answers"`
	Score               int                   `json:"score"`
	TimeSpentSeconds    int                   `json:"time_spent_seconds"`
	QuestionPerformance []QuestionPerformance `json:"question_performance"`
	CompletedAt         time.Time             `json:"completed_at"`
	AutoSubmitted       bool                  `json:"auto_submitted"`
}

// SessionSummary is a list entry in a user's exam history.
type SessionSummary struct {
	ID               uuid.UUID     `json:"id"`
	Module           string        `json:"module"`
	ExamType         ExamType      `json:"exam_type"`
	TimeLimitMinutes *int          `json:"time_limit_minutes,omitempty"`
	TotalQuestions   int           `json:"total_questions"`
	StartedAt        time.Time     `json:"started_at"`
	Status           SessionStatus `json:"status"`
	CompletedAt      *time.Time    `json:"completed_at,omitempty"`
	Score            *int          `json:"score,omitempty"`
}

// SessionPaper is the session view sent to the exam taker (no correct answers).
type SessionPaper struct {
	ID               uuid.UUID          `json:"id"`
	Module           string             `json:"module"`
	ExamType         ExamType           `json:"exam_type"`
	TimeLimitMinutes *int               `json:"time_limit_minutes,omitempty"`
	TotalQuestions   int                `json:"total_questions"`
	StartedAt        time.Time          `json:"started_at"`
	Status           SessionStatus      `json:"status"`
	Questions        []QuestionForTaker `json:"questions"`
	Answers          Answers            `json:"answers"`
}

// Paper strips correct answers from the session for the exam taker.
func (s *ExamSession) Paper() *SessionPaper {
	questions := make([]QuestionForTaker, len(s.Questions))
	for i, q := range s.Questions {
		questions[i] = q.ForTaker(i)
	}
	answers := s.Answers
	if answers == nil {
		answers = Answers{}
	}
	return &SessionPaper{
		ID:               s.ID,
		Module:           s.Module,
		ExamType:         s.ExamType,
		TimeLimitMinutes: s.TimeLimitMinutes,
		TotalQuestions:   s.TotalQuestions,
		StartedAt:        s.StartedAt,
		Status:           s.Status,
		Questions:        questions,
		Answers:          answers,
	}
}

// CreateSessionRequest is the payload for starting a new exam attempt.
type CreateSessionRequest struct {
	Module           string `json:"module" binding:"required,min=2,max=64"`
	ExamType         string `json:"exam_type" binding:"required,examtype"`
	TimeLimitMinutes *int   `json:"time_limit_minutes" binding:"omitempty,min=1,max=600"`
	QuestionCount    int    `json:"question_count" binding:"required,min=1,max=500"`
	Seed             *int64 `json:"seed" binding:"omitempty"`
}
