package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-practice/internal/model"
)

// StatsRepository reads per-user module aggregates maintained by the stats worker.
type StatsRepository struct {
	pool *pgxpool.Pool
}

// NewStatsRepository creates a new StatsRepository.
func NewStatsRepository(pool *pgxpool.Pool) *StatsRepository {
	return &StatsRepository{pool: pool}
}

// Get returns the aggregate of ownerID in module. A user without completed
// attempts gets zeroed stats.
func (r *StatsRepository) Get(ctx context.Context, ownerID int, module string) (*model.ModuleStats, error) {
	st := &model.ModuleStats{OwnerID: ownerID, Module: module}
	err := r.pool.QueryRow(ctx,
		`SELECT attempts, best_score, total_correct, total_questions, last_completed_at
		 FROM user_module_stats
		 WHERE owner_id = $1 AND module = $2`, ownerID, module,
	).Scan(&st.Attempts, &st.BestScore, &st.TotalCorrect, &st.TotalQuestions, &st.LastCompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return st, nil
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

// ListByOwner returns every module aggregate of ownerID.
func (r *StatsRepository) ListByOwner(ctx context.Context, ownerID int) ([]model.ModuleStats, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT module, attempts, best_score, total_correct, total_questions, last_completed_at
		 FROM user_module_stats
		 WHERE owner_id = $1
		 ORDER BY module`, ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []model.ModuleStats
	for rows.Next() {
		st := model.ModuleStats{OwnerID: ownerID}
		if err := rows.Scan(&st.Module, &st.Attempts, &st.BestScore, &st.TotalCorrect,
			&st.TotalQuestions, &st.LastCompletedAt); err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

const upsertStatsSQL = `
	INSERT INTO user_module_stats AS s
		(owner_id, module, attempts, best_score, total_correct, total_questions, last_completed_at)
	SELECT * FROM UNNEST(
		$1::int[],
		$2::text[],
		$3::int[],
		$4::int[],
		$5::int[],
		$6::int[],
		$7::timestamptz[]
	)
	ON CONFLICT (owner_id, module) DO UPDATE
	SET attempts          = s.attempts + EXCLUDED.attempts,
	    best_score        = GREATEST(s.best_score, EXCLUDED.best_score),
	    total_correct     = s.total_correct + EXCLUDED.total_correct,
	    total_questions   = s.total_questions + EXCLUDED.total_questions,
	    last_completed_at = GREATEST(s.last_completed_at, EXCLUDED.last_completed_at)
`

// BulkApply upserts deltas in one statement. Each (owner, module) pair
// must appear at most once.
func (r *StatsRepository) BulkApply(ctx context.Context, deltas []model.ModuleStatsDelta) error {
	n := len(deltas)
	owners := make([]int, 0, n)
	modules := make([]string, 0, n)
	attempts := make([]int, 0, n)
	best := make([]int, 0, n)
	correct := make([]int, 0, n)
	totals := make([]int, 0, n)
	last := make([]time.Time, 0, n)

	for _, d := range deltas {
		owners = append(owners, d.OwnerID)
		modules = append(modules, d.Module)
		attempts = append(attempts, d.Attempts)
		best = append(best, d.BestScore)
		correct = append(correct, d.TotalCorrect)
		totals = append(totals, d.TotalQuestions)
		last = append(last, d.LastCompletedAt)
	}

	_, err := r.pool.Exec(ctx, upsertStatsSQL, owners, modules, attempts, best, correct, totals, last)
	return err
}

// Apply upserts a single delta.
func (r *StatsRepository) Apply(ctx context.Context, d model.ModuleStatsDelta) error {
	return r.BulkApply(ctx, []model.ModuleStatsDelta{d})
}
