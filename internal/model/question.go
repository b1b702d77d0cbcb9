package model

import (
	"time"

	"github.com/google/uuid"
)

// Option is one of the four answer choices of a question.
type Option string

const (
	OptionA Option = "A"
	OptionB Option = "B"
	OptionC Option = "C"
	OptionD Option = "D"
)

// OptionCount is the number of choices every question carries.
const OptionCount = 4

// Valid reports whether o is one of A-D.
func (o Option) Valid() bool {
	switch o {
	case OptionA, OptionB, OptionC, OptionD:
		return true
	}
	return false
}

// QuestionStatus tracks curation state in the question bank.
type QuestionStatus string

const (
	QuestionStatusPending  QuestionStatus = "pending"
	QuestionStatusApproved QuestionStatus = "approved"
	QuestionStatusRejected QuestionStatus = "rejected"
)

// Question represents a single multiple-choice question.
type Question struct {
	ID            uuid.UUID      `json:"id"`
	Module        string         `json:"module"`
	QuestionText  string         `json:"question_text"`
	Options       []string       `json:"options"`
	CorrectAnswer Option         `json:"correct_answer"`
	Explanation   string         `json:"explanation,omitempty"`
	Status        QuestionStatus `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
}

// QuestionForTaker is a question without the correct answer.
type QuestionForTaker struct {
	ID           uuid.UUID `json:"id"`
	Index        int       `json:"index"`
	QuestionText string    `json:"question_text"`
	Options      []string  `json:"options"`
}

// ForTaker returns the taker-facing view of q at position index.
func (q Question) ForTaker(index int) QuestionForTaker {
	return QuestionForTaker{
		ID:           q.ID,
		Index:        index,
		QuestionText: q.QuestionText,
		Options:      q.Options,
	}
}

// SeedQuestion is the on-disk format consumed by cmd/seed-questions.
type SeedQuestion struct {
	Module        string   `json:"module" validate:"required"`
	QuestionText  string   `json:"question_text" validate:"required,max=2000"`
	Options       []string `json:"options" validate:"len=4,dive,required"`
	CorrectAnswer string   `json:"correct_answer" validate:"required,oneof=A B C D"`
	Explanation   string   `json:"explanation"`
}
