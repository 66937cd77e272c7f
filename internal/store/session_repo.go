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

// SessionRepo handles persistence for battle sessions.
type SessionRepo struct{}

// Create inserts a new session at state_version 1.
func (r *SessionRepo) Create(ctx context.Context, q querier, s *domain.Session) error {
	msgs, report, err := encodeSession(s)
	if err != nil {
		return err
	}
	const stmt = `INSERT INTO sessions (session_id, user_id, level_id, messages_json, current_round, max_rounds, status, report_json, state_version, last_event_seq, created_at_unix, updated_at_unix)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?)`
	_, err = q.ExecContext(ctx, stmt,
		s.ID,
		s.UserID,
		s.LevelID,
		msgs,
		s.CurrentRound,
		s.MaxRounds,
		string(s.Status),
		report,
		s.LastEventSeq,
		s.CreatedAt.UnixNano(),
		s.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return writeErr("create session", err)
	}
	return nil
}

// UpdateState writes the mutable session fields using optimistic locking.
// The update only succeeds if the stored state_version matches s.Version.
func (r *SessionRepo) UpdateState(ctx context.Context, q querier, s *domain.Session) error {
	msgs, report, err := encodeSession(s)
	if err != nil {
		return err
	}
	const stmt = `UPDATE sessions SET
		messages_json = ?,
		current_round = ?,
		status = ?,
		report_json = ?,
		state_version = state_version + 1,
		last_event_seq = ?,
		updated_at_unix = ?
	WHERE session_id = ? AND state_version = ?`

	res, err := q.ExecContext(ctx, stmt,
		msgs,
		s.CurrentRound,
		string(s.Status),
		report,
		s.LastEventSeq,
		s.UpdatedAt.UnixNano(),
		s.ID,
		s.Version,
	)
	if err != nil {
		return writeErr("update session state", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrOptimisticLock
	}
	return nil
}

const sessionColumns = `session_id, user_id, level_id, messages_json, current_round, max_rounds, status, report_json, state_version, last_event_seq, created_at_unix, updated_at_unix`

// GetByID retrieves a session by its ID.
func (r *SessionRepo) GetByID(ctx context.Context, q querier, sessionID string) (*domain.Session, error) {
	row := q.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, sessionID)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, queryErr("get session", err)
	}
	return s, nil
}

// ListByUser returns a user's sessions, newest first. limit <= 0 means all.
func (r *SessionRepo) ListByUser(ctx context.Context, q querier, userID string, limit int) ([]domain.Session, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := q.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions
WHERE user_id = ?
ORDER BY created_at_unix DESC
LIMIT ?`, userID, limit)
	if err != nil {
		return nil, queryErr("list sessions", err)
	}
	defer rows.Close()

	var out []domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var (
		s                  domain.Session
		msgs, report, stat string
		created, updated   int64
	)
	err := row.Scan(&s.ID, &s.UserID, &s.LevelID, &msgs, &s.CurrentRound, &s.MaxRounds,
		&stat, &report, &s.Version, &s.LastEventSeq, &created, &updated)
	if err != nil {
		return nil, err
	}
	s.Status = domain.SessionStatus(stat)
	s.CreatedAt = time.Unix(0, created)
	s.UpdatedAt = time.Unix(0, updated)
	if err := json.Unmarshal([]byte(msgs), &s.Messages); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	if report != "" {
		s.Report = &domain.BattleReport{}
		if err := json.Unmarshal([]byte(report), s.Report); err != nil {
			return nil, fmt.Errorf("decode report: %w", err)
		}
	}
	return &s, nil
}

func encodeSession(s *domain.Session) (msgs, report string, err error) {
	messages := s.Messages
	if messages == nil {
		messages = []domain.Message{}
	}
	b, err := json.Marshal(messages)
	if err != nil {
		return "", "", fmt.Errorf("encode messages: %w", err)
	}
	if s.Report != nil {
		rb, err := json.Marshal(s.Report)
		if err != nil {
			return "", "", fmt.Errorf("encode report: %w", err)
		}
		report = string(rb)
	}
	return string(b), report, nil
}
