package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fogbreaker/engine/internal/domain"
)

// ProgressRepo handles persistence for per-user level progress. Unlocked
// levels and best scores are stored as JSON columns.
type ProgressRepo struct{}

// Upsert inserts or replaces a user's progress.
func (r *ProgressRepo) Upsert(ctx context.Context, q querier, p *domain.UserProgress) error {
	unlocked := p.UnlockedLevels
	if unlocked == nil {
		unlocked = []int{}
	}
	ub, err := json.Marshal(unlocked)
	if err != nil {
		return fmt.Errorf("encode unlocked levels: %w", err)
	}
	best := p.BestScores
	if best == nil {
		best = map[int]int{}
	}
	bb, err := json.Marshal(best)
	if err != nil {
		return fmt.Errorf("encode best scores: %w", err)
	}

	const stmt = `INSERT INTO user_progress (user_id, unlocked_json, best_scores_json, updated_at_unix)
VALUES (?, ?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET
	unlocked_json = excluded.unlocked_json,
	best_scores_json = excluded.best_scores_json,
	updated_at_unix = excluded.updated_at_unix`
	if _, err := q.ExecContext(ctx, stmt, p.UserID, string(ub), string(bb), p.UpdatedAt.UnixNano()); err != nil {
		return writeErr("upsert progress", err)
	}
	return nil
}

// GetByUser retrieves a user's progress.
func (r *ProgressRepo) GetByUser(ctx context.Context, q querier, userID string) (*domain.UserProgress, error) {
	const stmt = `SELECT user_id, unlocked_json, best_scores_json, updated_at_unix FROM user_progress WHERE user_id = ?`
	var (
		p              domain.UserProgress
		unlocked, best string
		updated        int64
	)
	err := q.QueryRowContext(ctx, stmt, userID).Scan(&p.UserID, &unlocked, &best, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProgressNotFound
		}
		return nil, queryErr("get progress", err)
	}
	if err := json.Unmarshal([]byte(unlocked), &p.UnlockedLevels); err != nil {
		return nil, fmt.Errorf("decode unlocked levels: %w", err)
	}
	p.BestScores = map[int]int{}
	if err := json.Unmarshal([]byte(best), &p.BestScores); err != nil {
		return nil, fmt.Errorf("decode best scores: %w", err)
	}
	p.UpdatedAt = time.Unix(0, updated)
	return &p, nil
}
