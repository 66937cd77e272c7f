package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/fogbreaker/engine/internal/domain"
)

// UserRepo handles persistence for user profiles.
type UserRepo struct{}

// Upsert inserts or replaces a profile.
func (r *UserRepo) Upsert(ctx context.Context, q querier, u *domain.UserProfile) error {
	const stmt = `INSERT INTO users (user_id, display_name, agent_name, experience, level, created_at_unix)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET
	display_name = excluded.display_name,
	agent_name = excluded.agent_name,
	experience = excluded.experience,
	level = excluded.level`
	_, err := q.ExecContext(ctx, stmt, u.ID, u.DisplayName, u.AgentName, u.Experience, u.Level, u.CreatedAt.UnixNano())
	if err != nil {
		return writeErr("upsert user", err)
	}
	return nil
}

// GetByID retrieves a profile.
func (r *UserRepo) GetByID(ctx context.Context, q querier, userID string) (*domain.UserProfile, error) {
	const stmt = `SELECT user_id, display_name, agent_name, experience, level, created_at_unix FROM users WHERE user_id = ?`
	var (
		u       domain.UserProfile
		created int64
	)
	err := q.QueryRowContext(ctx, stmt, userID).Scan(&u.ID, &u.DisplayName, &u.AgentName, &u.Experience, &u.Level, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, queryErr("get user", err)
	}
	u.CreatedAt = time.Unix(0, created)
	return &u, nil
}
