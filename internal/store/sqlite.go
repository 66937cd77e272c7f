package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fogbreaker/engine/internal/domain"

	_ "modernc.org/sqlite"
)

// schemaV1 defines the initial database schema.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS users (
	user_id         TEXT PRIMARY KEY,
	display_name    TEXT NOT NULL DEFAULT '',
	agent_name      TEXT NOT NULL DEFAULT '',
	experience      INTEGER NOT NULL DEFAULT 0,
	level           INTEGER NOT NULL DEFAULT 1,
	created_at_unix INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS user_progress (
	user_id          TEXT PRIMARY KEY,
	unlocked_json    TEXT NOT NULL DEFAULT '[1]',
	best_scores_json TEXT NOT NULL DEFAULT '{}',
	updated_at_unix  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS sessions (
	session_id      TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL,
	level_id        INTEGER NOT NULL,
	messages_json   TEXT NOT NULL DEFAULT '[]',
	current_round   INTEGER NOT NULL DEFAULT 0,
	max_rounds      INTEGER NOT NULL DEFAULT 0,
	status          TEXT NOT NULL DEFAULT 'active',
	report_json     TEXT NOT NULL DEFAULT '',
	state_version   INTEGER NOT NULL DEFAULT 1,
	last_event_seq  INTEGER NOT NULL DEFAULT 0,
	created_at_unix INTEGER NOT NULL DEFAULT 0,
	updated_at_unix INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id, created_at_unix);

CREATE TABLE IF NOT EXISTS battle_events (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id   TEXT NOT NULL,
	seq_no       INTEGER NOT NULL,
	event_type   TEXT NOT NULL,
	payload_json TEXT NOT NULL DEFAULT '{}',
	created_at   INTEGER NOT NULL,
	UNIQUE(session_id, seq_no)
);
CREATE INDEX IF NOT EXISTS idx_events_session_seq ON battle_events(session_id, seq_no);

CREATE TABLE IF NOT EXISTS study_notes (
	note_id    TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	session_id TEXT NOT NULL DEFAULT '',
	title      TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notes_user ON study_notes(user_id, created_at);
`

// NewDB opens a SQLite database at the given path with recommended pragmas
// and runs the V1 schema migration.
func NewDB(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection: every write transaction is serialized, which also
	// serializes ledger updates per user.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, domain.WrapEngineError(domain.ErrSchemaMigration.Code, "migrate schema", err)
	}

	return db, nil
}

func migrate(db *sql.DB) error {
	_, err := db.ExecContext(context.Background(), schemaV1)
	return err
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLite is a Repository backed by a SQLite database.
type SQLite struct {
	db       *sql.DB
	users    UserRepo
	progress ProgressRepo
	sessions SessionRepo
	events   EventRepo
	notes    NoteRepo
}

// OpenSQLite opens (and migrates) the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := NewDB(path)
	if err != nil {
		return nil, err
	}
	return NewSQLite(db), nil
}

// NewSQLite wraps an already migrated database.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

// DB exposes the underlying handle.
func (s *SQLite) DB() *sql.DB { return s.db }

// WithinTx runs fn inside a database transaction.
func (s *SQLite) WithinTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&sqliteTx{s: s, q: tx}); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *SQLite) direct() *sqliteTx { return &sqliteTx{s: s, q: s.db} }

func (s *SQLite) GetUser(ctx context.Context, userID string) (*domain.UserProfile, error) {
	return s.direct().GetUser(ctx, userID)
}

func (s *SQLite) SaveUser(ctx context.Context, u *domain.UserProfile) error {
	return s.direct().SaveUser(ctx, u)
}

func (s *SQLite) GetProgress(ctx context.Context, userID string) (*domain.UserProgress, error) {
	return s.direct().GetProgress(ctx, userID)
}

func (s *SQLite) SaveProgress(ctx context.Context, p *domain.UserProgress) error {
	return s.direct().SaveProgress(ctx, p)
}

func (s *SQLite) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	return s.direct().GetSession(ctx, sessionID)
}

func (s *SQLite) SaveSession(ctx context.Context, sess *domain.Session) error {
	return s.direct().SaveSession(ctx, sess)
}

func (s *SQLite) AppendEvent(ctx context.Context, e domain.BattleEvent) error {
	return s.direct().AppendEvent(ctx, e)
}

func (s *SQLite) AddNote(ctx context.Context, n domain.StudyNote) error {
	return s.direct().AddNote(ctx, n)
}

// ListSessionsByUser returns the user's sessions, newest first.
func (s *SQLite) ListSessionsByUser(ctx context.Context, userID string, limit int) ([]domain.Session, error) {
	return s.sessions.ListByUser(ctx, s.db, userID, limit)
}

// ListEvents returns events with seq_no > sinceSeq in ascending order.
func (s *SQLite) ListEvents(ctx context.Context, sessionID string, sinceSeq int64) ([]domain.BattleEvent, error) {
	return s.events.ListBySession(ctx, s.db, sessionID, sinceSeq)
}

// ListNotes returns a user's study notes, oldest first.
func (s *SQLite) ListNotes(ctx context.Context, userID string) ([]domain.StudyNote, error) {
	return s.notes.ListByUser(ctx, s.db, userID)
}

// Close closes the database.
func (s *SQLite) Close(ctx context.Context) error {
	return s.db.Close()
}

// sqliteTx runs the Tx operations against either the database or an open
// transaction.
type sqliteTx struct {
	s *SQLite
	q querier
}

func (t *sqliteTx) GetUser(ctx context.Context, userID string) (*domain.UserProfile, error) {
	return t.s.users.GetByID(ctx, t.q, userID)
}

func (t *sqliteTx) SaveUser(ctx context.Context, u *domain.UserProfile) error {
	return t.s.users.Upsert(ctx, t.q, u)
}

func (t *sqliteTx) GetProgress(ctx context.Context, userID string) (*domain.UserProgress, error) {
	return t.s.progress.GetByUser(ctx, t.q, userID)
}

func (t *sqliteTx) SaveProgress(ctx context.Context, p *domain.UserProgress) error {
	return t.s.progress.Upsert(ctx, t.q, p)
}

func (t *sqliteTx) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	return t.s.sessions.GetByID(ctx, t.q, sessionID)
}

func (t *sqliteTx) SaveSession(ctx context.Context, sess *domain.Session) error {
	if sess.Version == 0 {
		if err := t.s.sessions.Create(ctx, t.q, sess); err != nil {
			return err
		}
		sess.Version = 1
		return nil
	}
	if err := t.s.sessions.UpdateState(ctx, t.q, sess); err != nil {
		return err
	}
	sess.Version++
	return nil
}

func (t *sqliteTx) AppendEvent(ctx context.Context, e domain.BattleEvent) error {
	return t.s.events.Append(ctx, t.q, e)
}

func (t *sqliteTx) AddNote(ctx context.Context, n domain.StudyNote) error {
	return t.s.notes.Add(ctx, t.q, n)
}
