package engine

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-practice/internal/model"
)

func newSession(examType model.ExamType, total int, limit *int) *model.ExamSession {
	return &model.ExamSession{
		ID:               uuid.New(),
		OwnerID:          7,
		Module:           "logical",
		ExamType:         examType,
		TimeLimitMinutes: limit,
		TotalQuestions:   total,
		Questions:        makeQuestions(total, model.OptionA),
		Answers:          model.Answers{},
		StartedAt:        time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC),
		Status:           model.SessionStatusInProgress,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *model.ExamSession)
		ok     bool
	}{
		{name: "valid timed", mutate: func(s *model.ExamSession) {}, ok: true},
		{name: "unknown type", mutate: func(s *model.ExamSession) { s.ExamType = "mock" }},
		{name: "count mismatch", mutate: func(s *model.ExamSession) { s.TotalQuestions = 4 }},
		{name: "empty", mutate: func(s *model.ExamSession) { s.TotalQuestions = 0; s.Questions = nil }},
		{name: "timed without limit", mutate: func(s *model.ExamSession) { s.TimeLimitMinutes = nil }},
		{name: "practice with limit", mutate: func(s *model.ExamSession) { s.ExamType = model.ExamTypePractice }},
		{name: "zero limit", mutate: func(s *model.ExamSession) { s.TimeLimitMinutes = intPtr(0) }},
		{name: "answer out of range", mutate: func(s *model.ExamSession) { s.Answers[3] = model.OptionA }},
		{name: "bad option", mutate: func(s *model.ExamSession) { s.Answers[0] = "E" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSession(model.ExamTypeStandard, 3, intPtr(10))
			tt.mutate(s)
			err := Validate(s)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidSession)
		})
	}
}

func TestResumeIndex(t *testing.T) {
	strict := newSession(model.ExamTypeStrict, 10, intPtr(10))
	strict.Answers = model.Answers{0: model.OptionA, 6: model.OptionB, 2: model.OptionC}
	assert.Equal(t, 6, resumeIndex(strict))

	strict.CurrentIndex = 8
	assert.Equal(t, 8, resumeIndex(strict))

	standard := newSession(model.ExamTypeStandard, 10, intPtr(10))
	standard.Answers = model.Answers{6: model.OptionB}
	assert.Equal(t, 0, resumeIndex(standard))
}

func TestResultFromSession(t *testing.T) {
	s := newSession(model.ExamTypePractice, 2, nil)
	_, err := ResultFromSession(s)
	require.Error(t, err)

	s.Answers = model.Answers{0: model.OptionA}
	fin := Finalize(s, 0, s.StartedAt.Add(time.Minute), false)
	complete(s, fin)

	res, err := ResultFromSession(s)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Score)
	assert.Equal(t, 2, res.TotalQuestions)
	assert.Equal(t, 60, res.TimeSpentSeconds)
	assert.Len(t, res.QuestionPerformance, 2)
	assert.Equal(t, model.SessionStatusCompleted, s.Status)
}
