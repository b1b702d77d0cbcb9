package engine

import (
	"time"

	"github.com/stemsi/exstem-practice/internal/model"
)

// Grade scores answers against the question set. Unanswered questions are
// always wrong; they are never excluded from the total.
func Grade(questions []model.Question, answers model.Answers) (int, []model.QuestionPerformance) {
	score := 0
	perf := make([]model.QuestionPerformance, len(questions))
	for i, q := range questions {
		p := model.QuestionPerformance{
			QuestionID:    q.ID,
			QuestionText:  q.QuestionText,
			CorrectAnswer: q.CorrectAnswer,
		}
		if ans, ok := answers[i]; ok {
			chosen := ans
			p.UserAnswer = &chosen
			p.IsCorrect = ans == q.CorrectAnswer
		}
		if p.IsCorrect {
			score++
		}
		perf[i] = p
	}
	return score, perf
}

// ElapsedSeconds returns the time spent on a session submitted at now.
// Timed sessions count against the limit; practice sessions use the wall clock.
func ElapsedSeconds(s *model.ExamSession, remaining int, now time.Time) int {
	if s.ExamType.Timed() && s.TimeLimitMinutes != nil {
		spent := *s.TimeLimitMinutes*60 - remaining
		if spent < 0 {
			spent = 0
		}
		return spent
	}
	spent := int(now.Sub(s.StartedAt) / time.Second)
	if spent < 0 {
		spent = 0
	}
	return spent
}

// Finalize builds the terminal write for s submitted at now with remaining seconds left.
func Finalize(s *model.ExamSession, remaining int, now time.Time, auto bool) model.Finalization {
	answers := s.Answers.Clone()
	score, perf := Grade(s.Questions, answers)
	return model.Finalization{
		Answers:             answers,
		Score:               score,
		TimeSpentSeconds:    ElapsedSeconds(s, remaining, now),
		QuestionPerformance: perf,
		CompletedAt:         now,
		AutoSubmitted:       auto,
	}
}
