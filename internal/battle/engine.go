// Package battle drives a session through its rounds: it requests lines from
// the text generators, tags opponent lines, and on the final round hands the
// transcript to scoring, the report synthesizer and the reward ledger.
package battle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fogbreaker/engine/internal/domain"
	"github.com/fogbreaker/engine/internal/fog"
	"github.com/fogbreaker/engine/internal/levels"
	"github.com/fogbreaker/engine/internal/progression"
	"github.com/fogbreaker/engine/internal/report"
	"github.com/fogbreaker/engine/internal/scoring"
	"github.com/fogbreaker/engine/internal/store"
)

// Event types written to a session's event log.
const (
	EventSessionOpened    = "session_opened"
	EventOpponentLine     = "opponent_line"
	EventRoundAdvanced    = "round_advanced"
	EventSessionCompleted = "session_completed"
)

const openingSeedTemplate = "关卡开始。背景：%s。请发起一句操控式开场。"

// OpeningSeed is the prompt seed for a level's first opponent line.
func OpeningSeed(level domain.Level) string {
	return fmt.Sprintf(openingSeedTemplate, level.Background)
}

// validTransitions defines the legal status transitions.
// active -> active is a round that did not finish the battle.
var validTransitions = map[domain.SessionStatus]map[domain.SessionStatus]bool{
	domain.StatusNotStarted: {domain.StatusActive: true},
	domain.StatusActive:     {domain.StatusActive: true, domain.StatusCompleted: true},
}

// IsValidTransition checks if a status transition is legal.
func IsValidTransition(from, to domain.SessionStatus) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

func transition(s *domain.Session, to domain.SessionStatus) error {
	if !IsValidTransition(s.Status, to) {
		return domain.NewEngineError(
			domain.ErrInvalidTransition.Code,
			fmt.Sprintf("illegal transition %s -> %s", s.Status, to),
		)
	}
	s.Status = to
	return nil
}

// LineGenerator produces dialogue text. Implementations own their timeouts
// and fallbacks; an error here fails the whole operation.
type LineGenerator interface {
	OpponentLine(ctx context.Context, p domain.OpponentPrompt) (string, error)
	AgentLine(ctx context.Context, p domain.AgentPrompt) (string, error)
}

// AdvanceResult is the outcome of Advance and AutoRun. Reward is set only on
// the call that completed the session.
type AdvanceResult struct {
	Completed bool                 `json:"completed"`
	Session   *domain.Session      `json:"session"`
	Report    *domain.BattleReport `json:"report,omitempty"`
	Reward    *domain.RewardResult `json:"reward,omitempty"`
}

// Engine is the session state machine.
type Engine struct {
	Repo   store.Repository
	Levels *levels.Catalog
	Lines  LineGenerator
	Ledger *progression.Ledger
	Now    func() time.Time
	NewID  func() string
}

// NewEngine wires an engine with the wall clock and random UUIDs.
func NewEngine(repo store.Repository, catalog *levels.Catalog, lines LineGenerator) *Engine {
	ledger := progression.NewLedger(repo, catalog)
	return &Engine{
		Repo:   repo,
		Levels: catalog,
		Lines:  lines,
		Ledger: ledger,
		Now:    time.Now,
		NewID:  uuid.NewString,
	}
}

// Open creates an active session holding the opening opponent line.
// Nothing is persisted unless the opening line was produced.
func (e *Engine) Open(ctx context.Context, userID string, levelID int, mode domain.Mode) (*domain.Session, error) {
	level, err := e.Levels.Get(levelID)
	if err != nil {
		return nil, err
	}

	now := e.Now()
	s := &domain.Session{
		ID:        e.NewID(),
		UserID:    userID,
		LevelID:   level.ID,
		Messages:  []domain.Message{},
		MaxRounds: level.Rounds,
		Status:    domain.StatusNotStarted,
		CreatedAt: now,
		UpdatedAt: now,
	}

	text, err := e.Lines.OpponentLine(ctx, domain.OpponentPrompt{
		Level: level,
		Seed:  OpeningSeed(level),
		Mode:  mode,
	})
	if err != nil {
		return nil, collaboratorFailed("opening opponent line", err)
	}
	tag := e.appendOpponent(s, text)
	if err := transition(s, domain.StatusActive); err != nil {
		return nil, err
	}

	err = e.Repo.WithinTx(ctx, func(tx store.Tx) error {
		opened := e.event(s, EventSessionOpened, map[string]any{
			"level_id":   level.ID,
			"max_rounds": level.Rounds,
			"mode":       mode,
		})
		line := e.event(s, EventOpponentLine, map[string]any{"round": 0, "tag": tag})
		if err := tx.SaveSession(ctx, s); err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, opened); err != nil {
			return err
		}
		return tx.AppendEvent(ctx, line)
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Advance plays one round. A completed session returns its stored result
// without calling the generators.
func (e *Engine) Advance(ctx context.Context, sessionID string, mode domain.Mode) (*AdvanceResult, error) {
	s, err := e.Repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Status == domain.StatusCompleted {
		return storedResult(s), nil
	}
	if s.Status != domain.StatusActive {
		return nil, domain.NewEngineError(domain.ErrInvalidTransition.Code,
			fmt.Sprintf("cannot advance session in status %s", s.Status))
	}

	level, err := e.Levels.Get(s.LevelID)
	if err != nil {
		return nil, err
	}

	last, ok := s.LastOpponentLine()
	if !ok {
		return nil, domain.ErrNoOpponentLine
	}

	// A previous Advance persisted its round but failed to get the next
	// opponent line; finish that round instead of answering twice.
	if s.Messages[len(s.Messages)-1].Sender == domain.SenderAgent {
		return e.nextOpponentLine(ctx, s, level, mode)
	}

	text, err := e.Lines.AgentLine(ctx, domain.AgentPrompt{
		UserID:       s.UserID,
		Level:        level,
		OpponentLine: last.Text,
		Mode:         mode,
	})
	if err != nil {
		return nil, collaboratorFailed("agent line", err)
	}
	s.Messages = append(s.Messages, domain.Message{
		Sender:    domain.SenderAgent,
		Text:      text,
		Timestamp: e.Now(),
	})
	s.CurrentRound++
	s.UpdatedAt = e.Now()

	if s.CurrentRound >= s.MaxRounds {
		res, err := e.complete(ctx, s, level)
		if errors.Is(err, domain.ErrOptimisticLock) {
			// A duplicate call may have completed the session first.
			if cur, gerr := e.Repo.GetSession(ctx, sessionID); gerr == nil && cur.Status == domain.StatusCompleted {
				return storedResult(cur), nil
			}
		}
		return res, err
	}

	if err := transition(s, domain.StatusActive); err != nil {
		return nil, err
	}
	err = e.Repo.WithinTx(ctx, func(tx store.Tx) error {
		ev := e.event(s, EventRoundAdvanced, map[string]any{"round": s.CurrentRound})
		if err := tx.SaveSession(ctx, s); err != nil {
			return err
		}
		return tx.AppendEvent(ctx, ev)
	})
	if err != nil {
		return nil, err
	}

	return e.nextOpponentLine(ctx, s, level, mode)
}

func (e *Engine) nextOpponentLine(ctx context.Context, s *domain.Session, level domain.Level, mode domain.Mode) (*AdvanceResult, error) {
	transcript := append([]domain.Message(nil), s.Messages...)
	text, err := e.Lines.OpponentLine(ctx, domain.OpponentPrompt{
		Level:      level,
		Transcript: transcript,
		Mode:       mode,
	})
	if err != nil {
		return nil, collaboratorFailed("opponent line", err)
	}
	tag := e.appendOpponent(s, text)
	s.UpdatedAt = e.Now()

	err = e.Repo.WithinTx(ctx, func(tx store.Tx) error {
		ev := e.event(s, EventOpponentLine, map[string]any{"round": s.CurrentRound, "tag": tag})
		if err := tx.SaveSession(ctx, s); err != nil {
			return err
		}
		return tx.AppendEvent(ctx, ev)
	})
	if err != nil {
		return nil, err
	}
	return &AdvanceResult{Session: s}, nil
}

// complete scores the transcript and commits the report, the reward, the
// completion event and the study note as one unit.
func (e *Engine) complete(ctx context.Context, s *domain.Session, level domain.Level) (*AdvanceResult, error) {
	card := scoring.Evaluate(s.Messages)
	if err := scoring.Validate(card.Breakdown); err != nil {
		return nil, err
	}
	learning := report.Build(report.Input{
		Messages:  s.Messages,
		Breakdown: card.Breakdown,
		TagCounts: card.TagCounts,
		Total:     card.Total,
	})
	rep := &domain.BattleReport{
		TotalScore: card.Total,
		Grade:      card.Grade,
		Breakdown:  card.Breakdown,
		TagCounts:  card.TagCounts,
		KeyMoments: card.KeyMoments,
		ExpGained:  card.Total,
		Learning:   learning,
	}
	if err := transition(s, domain.StatusCompleted); err != nil {
		return nil, err
	}
	s.Report = rep

	title, content := report.StudyNote(level, rep)
	var reward *domain.RewardResult
	err := e.Repo.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		reward, err = e.Ledger.Apply(ctx, tx, s.UserID, s.LevelID, rep.ExpGained)
		if err != nil {
			return err
		}
		ev := e.event(s, EventSessionCompleted, map[string]any{
			"round":       s.CurrentRound,
			"total_score": rep.TotalScore,
			"grade":       rep.Grade,
			"exp_gained":  rep.ExpGained,
			"leveled_up":  reward.LeveledUp,
		})
		if err := tx.SaveSession(ctx, s); err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, ev); err != nil {
			return err
		}
		return tx.AddNote(ctx, domain.StudyNote{
			ID:        e.NewID(),
			UserID:    s.UserID,
			SessionID: s.ID,
			Title:     title,
			Content:   content,
			CreatedAt: e.Now().Unix(),
		})
	})
	if err != nil {
		return nil, err
	}

	return &AdvanceResult{Completed: true, Session: s, Report: rep, Reward: reward}, nil
}

// AutoRun opens a session and advances it until it completes.
func (e *Engine) AutoRun(ctx context.Context, userID string, levelID int, mode domain.Mode) (*AdvanceResult, error) {
	s, err := e.Open(ctx, userID, levelID, mode)
	if err != nil {
		return nil, err
	}
	for i := 0; i < s.MaxRounds; i++ {
		res, err := e.Advance(ctx, s.ID, mode)
		if err != nil {
			return nil, err
		}
		if res.Completed {
			return res, nil
		}
	}
	return nil, domain.NewEngineError(domain.ErrAutoRunDidNotComplete.Code,
		fmt.Sprintf("session %s still active after %d rounds", s.ID, s.MaxRounds))
}

// Get returns a session.
func (e *Engine) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	return e.Repo.GetSession(ctx, sessionID)
}

// Report returns the stored report of a completed session.
func (e *Engine) Report(ctx context.Context, sessionID string) (*domain.BattleReport, error) {
	s, err := e.Repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Status != domain.StatusCompleted || s.Report == nil {
		return nil, domain.ErrReportNotReady
	}
	return s.Report, nil
}

func (e *Engine) appendOpponent(s *domain.Session, text string) domain.Tag {
	tag := fog.Classify(text)
	s.Messages = append(s.Messages, domain.Message{
		Sender:    domain.SenderOpponent,
		Text:      text,
		Tag:       tag,
		Timestamp: e.Now(),
	})
	return tag
}

// event builds the next log entry for s and advances its sequence counter.
func (e *Engine) event(s *domain.Session, eventType string, payload map[string]any) domain.BattleEvent {
	s.LastEventSeq++
	b, err := json.Marshal(payload)
	if err != nil {
		b = []byte("{}")
	}
	return domain.BattleEvent{
		SessionID:   s.ID,
		SeqNo:       s.LastEventSeq,
		EventType:   eventType,
		PayloadJSON: string(b),
		CreatedAt:   e.Now().Unix(),
	}
}

func storedResult(s *domain.Session) *AdvanceResult {
	return &AdvanceResult{Completed: true, Session: s, Report: s.Report}
}

func collaboratorFailed(what string, err error) error {
	return domain.WrapEngineError(domain.ErrCollaboratorFailed.Code, what+" generation failed", err)
}
