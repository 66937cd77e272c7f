// Package store provides persistence for users, progress, battle sessions,
// their event logs and study notes. Three engines implement Repository:
// in-memory, SQLite and MongoDB.
package store

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/fogbreaker/engine/internal/domain"
)

// Engine names accepted by Open.
const (
	EngineMemory = "memory"
	EngineSQLite = "sqlite"
	EngineMongo  = "mongo"
)

// Tx is the set of operations available inside a unit of work.
//
// SaveSession inserts when s.Version is zero and otherwise updates only if the
// stored version still equals s.Version, returning ErrOptimisticLock when it
// does not. On success s.Version is advanced to the stored value.
type Tx interface {
	GetUser(ctx context.Context, userID string) (*domain.UserProfile, error)
	SaveUser(ctx context.Context, u *domain.UserProfile) error
	GetProgress(ctx context.Context, userID string) (*domain.UserProgress, error)
	SaveProgress(ctx context.Context, p *domain.UserProgress) error
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	SaveSession(ctx context.Context, s *domain.Session) error
	AppendEvent(ctx context.Context, e domain.BattleEvent) error
	AddNote(ctx context.Context, n domain.StudyNote) error
}

// Repository is the engine-facing persistence API. Its Tx methods run as
// single-statement units; WithinTx groups several into one atomic unit.
type Repository interface {
	Tx

	// ListSessionsByUser returns the user's sessions, newest first.
	ListSessionsByUser(ctx context.Context, userID string, limit int) ([]domain.Session, error)
	// ListEvents returns events with seq_no > sinceSeq in ascending order.
	ListEvents(ctx context.Context, sessionID string, sinceSeq int64) ([]domain.BattleEvent, error)
	// ListNotes returns a user's study notes, oldest first.
	ListNotes(ctx context.Context, userID string) ([]domain.StudyNote, error)

	// WithinTx runs fn atomically. If fn returns an error nothing it wrote is kept.
	WithinTx(ctx context.Context, fn func(Tx) error) error
	Close(ctx context.Context) error
}

// Options selects and configures a store engine.
type Options struct {
	Engine        string
	SQLitePath    string
	MongoURI      string
	MongoDatabase string
}

// Open builds the Repository named by opts.Engine.
func Open(ctx context.Context, opts Options) (Repository, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Engine)) {
	case "", EngineSQLite:
		repo, err := OpenSQLite(opts.SQLitePath)
		if err != nil {
			return nil, domain.WrapEngineError(domain.ErrStoreInit.Code, "open sqlite store", err)
		}
		return repo, nil
	case EngineMemory:
		return NewMemory(), nil
	case EngineMongo:
		repo, err := OpenMongo(ctx, opts.MongoURI, opts.MongoDatabase)
		if err != nil {
			return nil, domain.WrapEngineError(domain.ErrStoreInit.Code, "open mongo store", err)
		}
		return repo, nil
	default:
		return nil, domain.WrapEngineError(domain.ErrStoreInit.Code,
			fmt.Sprintf("unsupported store engine %q", opts.Engine), nil)
	}
}

// queryErr and writeErr tag a driver failure with the store error codes so
// callers can tell storage faults from domain errors.
func queryErr(op string, err error) error {
	return domain.WrapEngineError(domain.ErrStoreQuery.Code, op, err)
}

func writeErr(op string, err error) error {
	return domain.WrapEngineError(domain.ErrStoreWrite.Code, op, err)
}

func cloneSession(s *domain.Session) *domain.Session {
	c := *s
	c.Messages = append([]domain.Message(nil), s.Messages...)
	if s.Report != nil {
		c.Report = cloneReport(s.Report)
	}
	return &c
}

// cloneReport copies every slice so a stored report cannot be changed
// through a value handed to a caller.
func cloneReport(r *domain.BattleReport) *domain.BattleReport {
	c := *r
	c.KeyMoments = slices.Clone(r.KeyMoments)
	c.Learning.Techniques = slices.Clone(r.Learning.Techniques)
	c.Learning.LearnedPoints = slices.Clone(r.Learning.LearnedPoints)
	c.Learning.Scenarios = slices.Clone(r.Learning.Scenarios)
	c.Learning.Strengths = slices.Clone(r.Learning.Strengths)
	c.Learning.Weaknesses = slices.Clone(r.Learning.Weaknesses)
	c.Learning.NextActions = slices.Clone(r.Learning.NextActions)
	return &c
}

func cloneProgress(p *domain.UserProgress) *domain.UserProgress {
	c := *p
	c.UnlockedLevels = append([]int(nil), p.UnlockedLevels...)
	c.BestScores = make(map[int]int, len(p.BestScores))
	for k, v := range p.BestScores {
		c.BestScores[k] = v
	}
	return &c
}
