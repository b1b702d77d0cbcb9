package setup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-practice/internal/model"
)

type poolSource struct {
	byModule map[string][]model.Question
	err      error
}

func newPoolSource(sizes map[string]int) *poolSource {
	s := &poolSource{byModule: map[string][]model.Question{}}
	for module, n := range sizes {
		for i := 0; i < n; i++ {
			s.byModule[module] = append(s.byModule[module], model.Question{
				ID:            uuid.New(),
				Module:        module,
				QuestionText:  module + " question",
				Options:       []string{"1", "2", "3", "4"},
				CorrectAnswer: model.OptionC,
				Status:        model.QuestionStatusApproved,
			})
		}
	}
	return s
}

func (s *poolSource) ApprovedIDs(_ context.Context, module string) ([]uuid.UUID, error) {
	if s.err != nil {
		return nil, s.err
	}
	var ids []uuid.UUID
	for m, qs := range s.byModule {
		if module != model.ModuleCombined && m != module {
			continue
		}
		for _, q := range qs {
			ids = append(ids, q.ID)
		}
	}
	return ids, nil
}

func (s *poolSource) QuestionsByIDs(_ context.Context, ids []uuid.UUID) ([]model.Question, error) {
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []model.Question
	for _, qs := range s.byModule {
		for _, q := range qs {
			if want[q.ID] {
				out = append(out, q)
			}
		}
	}
	return out, nil
}

func (s *poolSource) moduleOf(id uuid.UUID) string {
	for m, qs := range s.byModule {
		for _, q := range qs {
			if q.ID == id {
				return m
			}
		}
	}
	return ""
}

func minutes(v int) *int { return &v }
func seed(v int64) *int64 { return &v }

func TestBuildModuleExam(t *testing.T) {
	src := newPoolSource(map[string]int{"verbal": 40, "logical": 10})
	start := time.Date(2026, 2, 2, 7, 30, 0, 0, time.UTC)
	b := NewBuilder(src, zerolog.Nop(), WithClock(clockwork.NewFakeClockAt(start)))

	s, err := b.Build(context.Background(), Request{
		OwnerID:          3,
		Module:           "verbal",
		ExamType:         model.ExamTypeStandard,
		TimeLimitMinutes: minutes(20),
		QuestionCount:    25,
	})
	require.NoError(t, err)

	assert.Equal(t, 25, s.TotalQuestions)
	assert.Len(t, s.Questions, 25)
	assert.Equal(t, model.SessionStatusInProgress, s.Status)
	assert.Equal(t, start, s.StartedAt)
	assert.Equal(t, 20, *s.TimeLimitMinutes)
	assert.Empty(t, s.Answers)

	seen := map[uuid.UUID]bool{}
	for _, q := range s.Questions {
		assert.Equal(t, "verbal", q.Module)
		assert.False(t, seen[q.ID], "duplicate question %s", q.ID)
		seen[q.ID] = true
	}
}

func TestBuildCombinedDistribution(t *testing.T) {
	src := newPoolSource(map[string]int{"quantitative": 120, "logical": 80, "verbal": 90, "general": 60})
	b := NewBuilder(src, zerolog.Nop())

	s, err := b.Build(context.Background(), Request{
		Module:        model.ModuleCombined,
		ExamType:      model.ExamTypePractice,
		QuestionCount: CombinedExamSize,
	})
	require.NoError(t, err)
	require.Len(t, s.Questions, CombinedExamSize)
	assert.Nil(t, s.TimeLimitMinutes)

	counts := map[string]int{}
	for _, q := range s.Questions {
		counts[src.moduleOf(q.ID)]++
	}
	assert.Equal(t, map[string]int{"quantitative": 100, "logical": 75, "verbal": 75, "general": 50}, counts)
}

func TestBuildCombinedOtherSizeUsesWholePool(t *testing.T) {
	src := newPoolSource(map[string]int{"quantitative": 3, "general": 3})
	b := NewBuilder(src, zerolog.Nop())

	s, err := b.Build(context.Background(), Request{
		Module:        model.ModuleCombined,
		ExamType:      model.ExamTypePractice,
		QuestionCount: 6,
	})
	require.NoError(t, err)
	assert.Len(t, s.Questions, 6)
}

func TestBuildCombinedShortModule(t *testing.T) {
	src := newPoolSource(map[string]int{"quantitative": 120, "logical": 80, "verbal": 90, "general": 10})
	b := NewBuilder(src, zerolog.Nop())

	_, err := b.Build(context.Background(), Request{
		Module:        model.ModuleCombined,
		ExamType:      model.ExamTypePractice,
		QuestionCount: CombinedExamSize,
	})
	assert.ErrorIs(t, err, ErrInsufficientQuestions)
}

func TestBuildSeedIsReproducible(t *testing.T) {
	src := newPoolSource(map[string]int{"logical": 50})
	b := NewBuilder(src, zerolog.Nop())
	req := Request{Module: "logical", ExamType: model.ExamTypePractice, QuestionCount: 20, Seed: seed(42)}

	first, err := b.Build(context.Background(), req)
	require.NoError(t, err)
	second, err := b.Build(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.Questions, second.Questions)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestBuildRejectsInvalidRequests(t *testing.T) {
	src := newPoolSource(map[string]int{"general": 5})
	b := NewBuilder(src, zerolog.Nop())

	tests := []struct {
		name string
		req  Request
		want error
	}{
		{
			name: "pool too small",
			req:  Request{Module: "general", ExamType: model.ExamTypePractice, QuestionCount: 6},
			want: ErrInsufficientQuestions,
		},
		{
			name: "timed without limit",
			req:  Request{Module: "general", ExamType: model.ExamTypeStrict, QuestionCount: 2},
			want: ErrInvalidTimeLimit,
		},
		{
			name: "practice with limit",
			req:  Request{Module: "general", ExamType: model.ExamTypePractice, TimeLimitMinutes: minutes(5), QuestionCount: 2},
			want: ErrInvalidTimeLimit,
		},
		{
			name: "zero limit",
			req:  Request{Module: "general", ExamType: model.ExamTypeStandard, TimeLimitMinutes: minutes(0), QuestionCount: 2},
			want: ErrInvalidTimeLimit,
		},
		{
			name: "unknown type",
			req:  Request{Module: "general", ExamType: "mock", QuestionCount: 2},
			want: ErrInvalidExamType,
		},
		{
			name: "zero questions",
			req:  Request{Module: "general", ExamType: model.ExamTypePractice},
			want: ErrInvalidQuestionCount,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Build(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestBuildSourceError(t *testing.T) {
	src := newPoolSource(nil)
	src.err = errors.New("connection refused")
	b := NewBuilder(src, zerolog.Nop())

	_, err := b.Build(context.Background(), Request{Module: "general", ExamType: model.ExamTypePractice, QuestionCount: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, src.err)
}
