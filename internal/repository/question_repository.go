package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-practice/internal/model"
)

// QuestionRepository handles question bank data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// ApprovedIDs lists the ids of approved questions in module, or in every
// module when module is model.ModuleCombined.
func (r *QuestionRepository) ApprovedIDs(ctx context.Context, module string) ([]uuid.UUID, error) {
	query := `SELECT id FROM questions WHERE status = $1 AND module = $2 ORDER BY id`
	args := []any{model.QuestionStatusApproved, module}
	if module == model.ModuleCombined {
		query = `SELECT id FROM questions WHERE status = $1 ORDER BY id`
		args = args[:1]
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// QuestionsByIDs retrieves the given questions in no particular order.
func (r *QuestionRepository) QuestionsByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, module, question_text, options, correct_answer, explanation, status, created_at
		 FROM questions WHERE id = ANY($1)`, ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	questions := make([]model.Question, 0, len(ids))
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.Module, &q.QuestionText, &q.Options, &q.CorrectAnswer,
			&q.Explanation, &q.Status, &q.CreatedAt); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// CreateBatch bulk-inserts questions with COPY.
func (r *QuestionRepository) CreateBatch(ctx context.Context, questions []model.Question) (int64, error) {
	return r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"questions"},
		[]string{"id", "module", "question_text", "options", "correct_answer", "explanation", "status"},
		pgx.CopyFromSlice(len(questions), func(i int) ([]any, error) {
			q := questions[i]
			return []any{q.ID, q.Module, q.QuestionText, q.Options, string(q.CorrectAnswer), q.Explanation, string(q.Status)}, nil
		}),
	)
}

// CountApprovedByModule returns how many approved questions each module holds.
func (r *QuestionRepository) CountApprovedByModule(ctx context.Context) (map[string]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT module, COUNT(*) FROM questions WHERE status = $1 GROUP BY module`,
		model.QuestionStatusApproved,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var module string
		var n int
		if err := rows.Scan(&module, &n); err != nil {
			return nil, err
		}
		counts[module] = n
	}
	return counts, rows.Err()
}
