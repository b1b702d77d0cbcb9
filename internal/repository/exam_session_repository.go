package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-practice/internal/model"
)

// ErrNotInProgress is returned when a write targets a session that is
// missing or already completed.
var ErrNotInProgress = errors.New("exam session is not in progress")

// FinalizedSession identifies the row a finalize call completed.
type FinalizedSession struct {
	OwnerID        int
	Module         string
	TotalQuestions int
}

// ExamSessionRepository handles exam session data access.
type ExamSessionRepository struct {
	pool *pgxpool.Pool
}

// NewExamSessionRepository creates a new ExamSessionRepository.
func NewExamSessionRepository(pool *pgxpool.Pool) *ExamSessionRepository {
	return &ExamSessionRepository{pool: pool}
}

// Create inserts a session and its ordered question set in one transaction.
func (r *ExamSessionRepository) Create(ctx context.Context, s *model.ExamSession) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO exam_sessions
			   (id, owner_id, module, exam_type, time_limit_minutes, total_questions, answers, started_at, status)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			s.ID, s.OwnerID, s.Module, s.ExamType, s.TimeLimitMinutes, s.TotalQuestions,
			s.Answers, s.StartedAt, s.Status,
		); err != nil {
			return fmt.Errorf("insert session: %w", err)
		}

		_, err := tx.CopyFrom(
			ctx,
			pgx.Identifier{"session_questions"},
			[]string{"session_id", "position", "question_id"},
			pgx.CopyFromSlice(len(s.Questions), func(i int) ([]any, error) {
				return []any{s.ID, i, s.Questions[i].ID}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("copy session questions: %w", err)
		}
		return nil
	})
}

// GetByID retrieves a session with its questions in exam order.
// Returns pgx.ErrNoRows when the session does not exist.
func (r *ExamSessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, owner_id, module, exam_type, time_limit_minutes, total_questions, answers,
		        started_at, status, current_index, completed_at, score, time_spent_seconds,
		        question_performance, auto_submitted
		 FROM exam_sessions
		 WHERE id = $1`, id,
	).Scan(
		&s.ID, &s.OwnerID, &s.Module, &s.ExamType, &s.TimeLimitMinutes, &s.TotalQuestions, &s.Answers,
		&s.StartedAt, &s.Status, &s.CurrentIndex, &s.CompletedAt, &s.Score, &s.TimeSpentSeconds,
		&s.QuestionPerformance, &s.AutoSubmitted,
	)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT q.id, q.module, q.question_text, q.options, q.correct_answer, q.explanation, q.status, q.created_at
		 FROM session_questions sq
		 JOIN questions q ON q.id = sq.question_id
		 WHERE sq.session_id = $1
		 ORDER BY sq.position`, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.Module, &q.QuestionText, &q.Options, &q.CorrectAnswer,
			&q.Explanation, &q.Status, &q.CreatedAt); err != nil {
			return nil, err
		}
		s.Questions = append(s.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if s.Answers == nil {
		s.Answers = model.Answers{}
	}
	return s, nil
}

// UpdateAnswers overwrites the persisted answers of an in-progress session.
func (r *ExamSessionRepository) UpdateAnswers(ctx context.Context, id uuid.UUID, answers model.Answers) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET answers = $2, updated_at = NOW()
		 WHERE id = $1 AND status = $3`,
		id, answers, model.SessionStatusInProgress)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotInProgress
	}
	return nil
}

// UpdatePosition raises the stored pointer of an in-progress session to
// index. The pointer never decreases, whatever order concurrent writes land in.
func (r *ExamSessionRepository) UpdatePosition(ctx context.Context, id uuid.UUID, index int) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET current_index = GREATEST(current_index, $2), updated_at = NOW()
		 WHERE id = $1 AND status = $3`,
		id, index, model.SessionStatusInProgress)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotInProgress
	}
	return nil
}

// Finalize applies the terminal write in a single statement guarded by the
// in-progress status, so at most one caller ever completes a session.
func (r *ExamSessionRepository) Finalize(ctx context.Context, id uuid.UUID, fin model.Finalization) (*FinalizedSession, error) {
	out := &FinalizedSession{}
	err := r.pool.QueryRow(ctx,
		`UPDATE exam_sessions
		 SET answers = $2,
		     score = $3,
		     time_spent_seconds = $4,
		     question_performance = $5,
		     completed_at = $6,
		     auto_submitted = $7,
		     status = $8,
		     updated_at = NOW()
		 WHERE id = $1 AND status = $9
		 RETURNING owner_id, module, total_questions`,
		id, fin.Answers, fin.Score, fin.TimeSpentSeconds, fin.QuestionPerformance,
		fin.CompletedAt, fin.AutoSubmitted, model.SessionStatusCompleted, model.SessionStatusInProgress,
	).Scan(&out.OwnerID, &out.Module, &out.TotalQuestions)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotInProgress
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListByOwner retrieves a page of a user's sessions, newest first.
func (r *ExamSessionRepository) ListByOwner(ctx context.Context, ownerID, page, perPage int) ([]model.SessionSummary, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exam_sessions WHERE owner_id = $1`, ownerID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	rows, err := r.pool.Query(ctx,
		`SELECT id, module, exam_type, time_limit_minutes, total_questions, started_at, status, completed_at, score
		 FROM exam_sessions
		 WHERE owner_id = $1
		 ORDER BY started_at DESC
		 LIMIT $2 OFFSET $3`, ownerID, perPage, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	sessions := make([]model.SessionSummary, 0, perPage)
	for rows.Next() {
		var s model.SessionSummary
		if err := rows.Scan(&s.ID, &s.Module, &s.ExamType, &s.TimeLimitMinutes, &s.TotalQuestions,
			&s.StartedAt, &s.Status, &s.CompletedAt, &s.Score); err != nil {
			return nil, 0, err
		}
		sessions = append(sessions, s)
	}
	return sessions, total, rows.Err()
}

// BulkUpdateAnswers overwrites the answers of many in-progress sessions in
// one statement. Completed sessions are skipped.
func (r *ExamSessionRepository) BulkUpdateAnswers(ctx context.Context, ids []uuid.UUID, answers []model.Answers) error {
	raw := make([][]byte, 0, len(answers))
	for _, a := range answers {
		b, err := json.Marshal(a)
		if err != nil {
			return err
		}
		raw = append(raw, b)
	}

	_, err := r.pool.Exec(ctx, `
		UPDATE exam_sessions AS s
		SET answers = t.answers,
		    updated_at = NOW()
		FROM (
			SELECT u.id, u.answers
			FROM UNNEST(
				$1::uuid[],
				$2::jsonb[]
			) AS u (id, answers)
		) AS t
		WHERE s.id = t.id
		  AND s.status = $3
	`, ids, raw, model.SessionStatusInProgress)
	return err
}
