package model

import "time"

// User is an account that takes exams.
type User struct {
	ID           int       `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// LoginRequest is the payload for user login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// ModuleStats aggregates a user's completed attempts in one module.
type ModuleStats struct {
	OwnerID         int        `json:"owner_id"`
	Module          string     `json:"module"`
	Attempts        int        `json:"attempts"`
	BestScore       int        `json:"best_score"`
	TotalCorrect    int        `json:"total_correct"`
	TotalQuestions  int        `json:"total_questions"`
	LastCompletedAt *time.Time `json:"last_completed_at,omitempty"`
}

// Accuracy is the share of correctly answered questions across attempts.
func (s *ModuleStats) Accuracy() float64 {
	if s.TotalQuestions == 0 {
		return 0
	}
	return float64(s.TotalCorrect) / float64(s.TotalQuestions)
}

// AttemptOutcome is one completed attempt feeding the module aggregates.
type AttemptOutcome struct {
	OwnerID        int       `json:"owner_id"`
	Module         string    `json:"module"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"total_questions"`
	CompletedAt    time.Time `json:"completed_at"`
}

// ModuleStatsDelta is the increment applied to one ModuleStats row.
type ModuleStatsDelta struct {
	OwnerID         int
	Module          string
	Attempts        int
	BestScore       int
	TotalCorrect    int
	TotalQuestions  int
	LastCompletedAt time.Time
}
