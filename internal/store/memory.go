package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/fogbreaker/engine/internal/domain"
)

// memState is the full contents of a Memory store.
type memState struct {
	users    map[string]domain.UserProfile
	progress map[string]*domain.UserProgress
	sessions map[string]*domain.Session
	events   map[string][]domain.BattleEvent
	notes    map[string][]domain.StudyNote
}

func newMemState() *memState {
	return &memState{
		users:    make(map[string]domain.UserProfile),
		progress: make(map[string]*domain.UserProgress),
		sessions: make(map[string]*domain.Session),
		events:   make(map[string][]domain.BattleEvent),
		notes:    make(map[string][]domain.StudyNote),
	}
}

// Memory is a Repository held in process memory. A single mutex serializes
// all units of work. Used for tests and the "memory" engine.
type Memory struct {
	mu    sync.Mutex
	state *memState
	seq   int64
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{state: newMemState()}
}

// WithinTx runs fn against a staged copy of the touched records and applies
// the staged writes only when fn succeeds.
func (m *Memory) WithinTx(ctx context.Context, fn func(Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{base: m.state, staged: newMemState(), seq: &m.seq}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (m *Memory) do(ctx context.Context, fn func(Tx) error) error {
	return m.WithinTx(ctx, fn)
}

func (m *Memory) GetUser(ctx context.Context, userID string) (u *domain.UserProfile, err error) {
	err = m.do(ctx, func(tx Tx) error { u, err = tx.GetUser(ctx, userID); return err })
	return u, err
}

func (m *Memory) SaveUser(ctx context.Context, u *domain.UserProfile) error {
	return m.do(ctx, func(tx Tx) error { return tx.SaveUser(ctx, u) })
}

func (m *Memory) GetProgress(ctx context.Context, userID string) (p *domain.UserProgress, err error) {
	err = m.do(ctx, func(tx Tx) error { p, err = tx.GetProgress(ctx, userID); return err })
	return p, err
}

func (m *Memory) SaveProgress(ctx context.Context, p *domain.UserProgress) error {
	return m.do(ctx, func(tx Tx) error { return tx.SaveProgress(ctx, p) })
}

func (m *Memory) GetSession(ctx context.Context, sessionID string) (s *domain.Session, err error) {
	err = m.do(ctx, func(tx Tx) error { s, err = tx.GetSession(ctx, sessionID); return err })
	return s, err
}

func (m *Memory) SaveSession(ctx context.Context, s *domain.Session) error {
	return m.do(ctx, func(tx Tx) error { return tx.SaveSession(ctx, s) })
}

func (m *Memory) AppendEvent(ctx context.Context, e domain.BattleEvent) error {
	return m.do(ctx, func(tx Tx) error { return tx.AppendEvent(ctx, e) })
}

func (m *Memory) AddNote(ctx context.Context, n domain.StudyNote) error {
	return m.do(ctx, func(tx Tx) error { return tx.AddNote(ctx, n) })
}

// ListSessionsByUser returns the user's sessions, newest first.
func (m *Memory) ListSessionsByUser(ctx context.Context, userID string, limit int) ([]domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Session
	for _, s := range m.state.sessions {
		if s.UserID == userID {
			out = append(out, *cloneSession(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListEvents returns events with seq_no > sinceSeq in ascending order.
func (m *Memory) ListEvents(ctx context.Context, sessionID string, sinceSeq int64) ([]domain.BattleEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.BattleEvent
	for _, e := range m.state.events[sessionID] {
		if e.SeqNo > sinceSeq {
			out = append(out, e)
		}
	}
	return out, nil
}

// ListNotes returns a user's study notes, oldest first.
func (m *Memory) ListNotes(ctx context.Context, userID string) ([]domain.StudyNote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.StudyNote(nil), m.state.notes[userID]...), nil
}

// Close is a no-op.
func (m *Memory) Close(ctx context.Context) error { return nil }

// memTx reads through staged writes to the base state.
type memTx struct {
	base   *memState
	staged *memState
	seq    *int64
}

func (t *memTx) GetUser(ctx context.Context, userID string) (*domain.UserProfile, error) {
	if u, ok := t.staged.users[userID]; ok {
		return &u, nil
	}
	if u, ok := t.base.users[userID]; ok {
		return &u, nil
	}
	return nil, domain.ErrUserNotFound
}

func (t *memTx) SaveUser(ctx context.Context, u *domain.UserProfile) error {
	t.staged.users[u.ID] = *u
	return nil
}

func (t *memTx) GetProgress(ctx context.Context, userID string) (*domain.UserProgress, error) {
	if p, ok := t.staged.progress[userID]; ok {
		return cloneProgress(p), nil
	}
	if p, ok := t.base.progress[userID]; ok {
		return cloneProgress(p), nil
	}
	return nil, domain.ErrProgressNotFound
}

func (t *memTx) SaveProgress(ctx context.Context, p *domain.UserProgress) error {
	t.staged.progress[p.UserID] = cloneProgress(p)
	return nil
}

func (t *memTx) lookupSession(id string) (*domain.Session, bool) {
	if s, ok := t.staged.sessions[id]; ok {
		return s, true
	}
	s, ok := t.base.sessions[id]
	return s, ok
}

func (t *memTx) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	s, ok := t.lookupSession(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return cloneSession(s), nil
}

func (t *memTx) SaveSession(ctx context.Context, s *domain.Session) error {
	cur, exists := t.lookupSession(s.ID)
	if s.Version == 0 {
		if exists {
			return writeErr("create session", fmt.Errorf("session %s already exists", s.ID))
		}
	} else if !exists || cur.Version != s.Version {
		return domain.ErrOptimisticLock
	}
	s.Version++
	t.staged.sessions[s.ID] = cloneSession(s)
	return nil
}

func (t *memTx) AppendEvent(ctx context.Context, e domain.BattleEvent) error {
	for _, list := range [][]domain.BattleEvent{t.base.events[e.SessionID], t.staged.events[e.SessionID]} {
		for _, have := range list {
			if have.SeqNo == e.SeqNo {
				return writeErr("append event", fmt.Errorf("duplicate seq_no %d for session %s", e.SeqNo, e.SessionID))
			}
		}
	}
	*t.seq++
	e.ID = *t.seq
	t.staged.events[e.SessionID] = append(t.staged.events[e.SessionID], e)
	return nil
}

func (t *memTx) AddNote(ctx context.Context, n domain.StudyNote) error {
	t.staged.notes[n.UserID] = append(t.staged.notes[n.UserID], n)
	return nil
}

func (t *memTx) commit() {
	for k, v := range t.staged.users {
		t.base.users[k] = v
	}
	for k, v := range t.staged.progress {
		t.base.progress[k] = v
	}
	for k, v := range t.staged.sessions {
		t.base.sessions[k] = v
	}
	for k, v := range t.staged.events {
		t.base.events[k] = append(t.base.events[k], v...)
	}
	for k, v := range t.staged.notes {
		t.base.notes[k] = append(t.base.notes[k], v...)
	}
}
