package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-practice/internal/engine"
)

// ActivityRepository stores the session activity log.
type ActivityRepository struct {
	pool *pgxpool.Pool
}

// NewActivityRepository creates a new ActivityRepository.
func NewActivityRepository(pool *pgxpool.Pool) *ActivityRepository {
	return &ActivityRepository{pool: pool}
}

var activityColumns = []string{"session_id", "owner_id", "kind", "question_index", "option", "occurred_at"}

func activityRow(a engine.Activity) []any {
	var option *string
	if a.Option != "" {
		v := string(a.Option)
		option = &v
	}
	return []any{a.SessionID, a.OwnerID, string(a.Kind), a.Index, option, a.At}
}

// CopyBatch bulk-inserts activities with COPY.
func (r *ActivityRepository) CopyBatch(ctx context.Context, batch []engine.Activity) error {
	rows := make([][]any, 0, len(batch))
	for _, a := range batch {
		rows = append(rows, activityRow(a))
	}
	_, err := r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"exam_session_events"},
		activityColumns,
		pgx.CopyFromRows(rows),
	)
	return err
}

// Insert stores a single activity.
func (r *ActivityRepository) Insert(ctx context.Context, a engine.Activity) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO exam_session_events (session_id, owner_id, kind, question_index, option, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		activityRow(a)...,
	)
	return err
}

// ListBySession returns the activity log of a session in order.
func (r *ActivityRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]engine.Activity, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT session_id, owner_id, kind, question_index, COALESCE(option, ''), occurred_at
		 FROM exam_session_events
		 WHERE session_id = $1
		 ORDER BY occurred_at, id`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.Activity
	for rows.Next() {
		var a engine.Activity
		if err := rows.Scan(&a.SessionID, &a.OwnerID, &a.Kind, &a.Index, &a.Option, &a.At); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
