package store

import (
	"context"
	"fmt"

	"github.com/fogbreaker/engine/internal/domain"
)

// NoteRepo handles persistence for study notes.
type NoteRepo struct{}

// Add inserts a study note.
func (r *NoteRepo) Add(ctx context.Context, q querier, n domain.StudyNote) error {
	const stmt = `INSERT INTO study_notes (note_id, user_id, session_id, title, content, created_at)
VALUES (?, ?, ?, ?, ?, ?)`
	_, err := q.ExecContext(ctx, stmt, n.ID, n.UserID, n.SessionID, n.Title, n.Content, n.CreatedAt)
	if err != nil {
		return writeErr("add note", err)
	}
	return nil
}

// ListByUser returns all notes for a user, ordered by creation time.
func (r *NoteRepo) ListByUser(ctx context.Context, q querier, userID string) ([]domain.StudyNote, error) {
	const stmt = `SELECT note_id, user_id, session_id, title, content, created_at
FROM study_notes
WHERE user_id = ?
ORDER BY created_at ASC, rowid ASC`

	rows, err := q.QueryContext(ctx, stmt, userID)
	if err != nil {
		return nil, queryErr("list notes", err)
	}
	defer rows.Close()

	var notes []domain.StudyNote
	for rows.Next() {
		var n domain.StudyNote
		if err := rows.Scan(&n.ID, &n.UserID, &n.SessionID, &n.Title, &n.Content, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}
