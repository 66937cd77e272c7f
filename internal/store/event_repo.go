package store

import (
	"context"
	"fmt"

	"github.com/fogbreaker/engine/internal/domain"
)

// EventRepo handles persistence for BattleEvent records.
type EventRepo struct{}

// Append inserts a battle event. (session_id, seq_no) is unique.
func (r *EventRepo) Append(ctx context.Context, q querier, event domain.BattleEvent) error {
	const stmt = `INSERT INTO battle_events (session_id, seq_no, event_type, payload_json, created_at)
VALUES (?, ?, ?, ?, ?)`
	_, err := q.ExecContext(ctx, stmt,
		event.SessionID,
		event.SeqNo,
		event.EventType,
		event.PayloadJSON,
		event.CreatedAt,
	)
	if err != nil {
		return writeErr("append event", err)
	}
	return nil
}

// ListBySession returns events for a session with sequence numbers greater
// than sinceSeq, ordered by sequence number ascending.
func (r *EventRepo) ListBySession(ctx context.Context, q querier, sessionID string, sinceSeq int64) ([]domain.BattleEvent, error) {
	const stmt = `SELECT id, session_id, seq_no, event_type, payload_json, created_at
FROM battle_events
WHERE session_id = ? AND seq_no > ?
ORDER BY seq_no ASC`

	rows, err := q.QueryContext(ctx, stmt, sessionID, sinceSeq)
	if err != nil {
		return nil, queryErr("list events", err)
	}
	defer rows.Close()

	var events []domain.BattleEvent
	for rows.Next() {
		var e domain.BattleEvent
		if err := rows.Scan(&e.ID, &e.SessionID, &e.SeqNo, &e.EventType, &e.PayloadJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
