// Package domain defines the core types for the Fogbreaker battle engine.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Tag classifies the manipulation tactic of an opponent line.
// The zero value means no tactic was detected.
type Tag string

const (
	TagNone       Tag = ""
	TagFear       Tag = "fear"
	TagObligation Tag = "obligation"
	TagGuilt      Tag = "guilt"
)

// AllTags lists the taxonomy in classifier priority order.
var AllTags = []Tag{TagFear, TagObligation, TagGuilt}

// FogType is a level's configured tactic: a fixed Tag or FogCombo.
type FogType string

const (
	FogFear       FogType = "fear"
	FogObligation FogType = "obligation"
	FogGuilt      FogType = "guilt"
	FogCombo      FogType = "combo"
)

// Sender identifies who produced a dialogue line.
type Sender string

const (
	SenderAgent    Sender = "agent"
	SenderOpponent Sender = "opponent"
)

// Mode is a hint passed through to the text generators.
type Mode string

const (
	ModeFast Mode = "fast"
	ModeReal Mode = "real"
)

// ParseMode maps free-form input to a Mode. Anything other than "real" is fast.
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), string(ModeReal)) {
		return ModeReal
	}
	return ModeFast
}

// LookupMode is the strict form of ParseMode: only "fast" and "real" (case
// and surrounding space ignored) are accepted.
func LookupMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeFast, ModeReal:
		return m, nil
	}
	return "", NewEngineError(ErrInvalidMode.Code, fmt.Sprintf("mode %q must be fast or real", s))
}

// Message is a single dialogue line. Messages are append-only.
type Message struct {
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	Tag       Tag       `json:"tag,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// UnlockRule gates a level behind a previous level's score.
type UnlockRule struct {
	PrevLevel int `json:"prev_level"`
	MinScore  int `json:"min_score"`
}

// Persona describes the opponent. Only the text generators read it.
type Persona struct {
	Name         string   `json:"name"`
	Traits       []string `json:"traits"`
	SystemPrompt string   `json:"system_prompt"`
}

// Level is a static battle configuration.
type Level struct {
	ID            int         `json:"id"`
	Title         string      `json:"title"`
	Description   string      `json:"description"`
	Difficulty    int         `json:"difficulty"`
	FogType       FogType     `json:"fog_type"`
	Unlock        *UnlockRule `json:"unlock_requirement"`
	Rounds        int         `json:"rounds"`
	Background    string      `json:"background"`
	LearningFocus []string    `json:"learning_focus"`
	Opponent      Persona     `json:"opponent"`
}

// SessionStatus represents the lifecycle state of a battle session.
type SessionStatus string

const (
	StatusNotStarted SessionStatus = "not_started"
	StatusActive     SessionStatus = "active"
	StatusCompleted  SessionStatus = "completed"
)

// Session is one battle attempt.
type Session struct {
	ID           string        `json:"id"`
	UserID       string        `json:"user_id"`
	LevelID      int           `json:"level_id"`
	Messages     []Message     `json:"messages"`
	CurrentRound int           `json:"current_round"`
	MaxRounds    int           `json:"max_rounds"`
	Status       SessionStatus `json:"status"`
	Report       *BattleReport `json:"report,omitempty"`
	Version      int64         `json:"version"`
	LastEventSeq int64         `json:"last_event_seq"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// LastOpponentLine scans backward for the most recent opponent line.
func (s *Session) LastOpponentLine() (Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Sender == SenderOpponent {
			return s.Messages[i], true
		}
	}
	return Message{}, false
}

// ScoreBreakdown holds the five independently capped score dimensions.
type ScoreBreakdown struct {
	Boundary    int `json:"boundary"`
	Questioning int `json:"questioning"`
	Stability   int `json:"stability"`
	Action      int `json:"action"`
	Empathy     int `json:"empathy"`
}

// Total returns the sum of all dimensions.
func (b ScoreBreakdown) Total() int {
	return b.Boundary + b.Questioning + b.Stability + b.Action + b.Empathy
}

// Grade is the letter grade derived from a total score.
type Grade string

const (
	GradeS Grade = "S"
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
)

// TagCounts counts opponent lines per tag.
type TagCounts struct {
	Fear       int `json:"fear_count"`
	Obligation int `json:"obligation_count"`
	Guilt      int `json:"guilt_count"`
}

// Total returns the number of tagged opponent lines.
func (c TagCounts) Total() int {
	return c.Fear + c.Obligation + c.Guilt
}

// MomentKind distinguishes best and worst exchanges.
type MomentKind string

const (
	MomentBest  MomentKind = "best"
	MomentWorst MomentKind = "worst"
)

// KeyMoment references one opponent line and the agent's response to it.
type KeyMoment struct {
	Kind          MomentKind `json:"type"`
	OpponentLine  string     `json:"opponent_line"`
	AgentResponse string     `json:"agent_response"`
	Comment       string     `json:"comment"`
}

// Scorecard is the output of transcript scoring.
type Scorecard struct {
	Breakdown  ScoreBreakdown `json:"breakdown"`
	Total      int            `json:"total_score"`
	Grade      Grade          `json:"grade"`
	TagCounts  TagCounts      `json:"tag_counts"`
	KeyMoments []KeyMoment    `json:"key_moments"`
}

// Technique is one manipulation pattern observed in the transcript.
type Technique struct {
	Tag             Tag    `json:"fog_type"`
	TriggerLine     string `json:"trigger_line"`
	PatternName     string `json:"pattern_name"`
	Risk            string `json:"risk"`
	CounterStrategy string `json:"counter_strategy"`
}

// Scenario is a real-life situation with a recommended response.
type Scenario struct {
	Scene               string `json:"scene"`
	RecommendedResponse string `json:"recommended_response"`
}

// LearningReport is the study sheet derived from a finished battle.
type LearningReport struct {
	Summary       string      `json:"summary"`
	Techniques    []Technique `json:"manipulations"`
	LearnedPoints []string    `json:"learned_points"`
	Scenarios     []Scenario  `json:"applicable_scenarios"`
	Strengths     []string    `json:"strengths"`
	Weaknesses    []string    `json:"weaknesses"`
	NextActions   []string    `json:"next_actions"`
}

// BattleReport groups every field written when a session completes.
type BattleReport struct {
	TotalScore int            `json:"total_score"`
	Grade      Grade          `json:"grade"`
	Breakdown  ScoreBreakdown `json:"breakdown"`
	TagCounts  TagCounts      `json:"fog_analysis"`
	KeyMoments []KeyMoment    `json:"key_moments"`
	ExpGained  int            `json:"exp_gained"`
	Learning   LearningReport `json:"learning_sheet"`
}

// UserProfile is the part of a user record the engine reads and writes.
type UserProfile struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	AgentName   string    `json:"agent_name"`
	Experience  int       `json:"experience"`
	Level       int       `json:"level"`
	CreatedAt   time.Time `json:"created_at"`
}

// UserProgress tracks unlocked levels and best scores.
type UserProgress struct {
	UserID         string      `json:"user_id"`
	UnlockedLevels []int       `json:"unlocked_levels"`
	BestScores     map[int]int `json:"level_best_scores"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// IsUnlocked reports whether levelID is in the unlocked set.
func (p *UserProgress) IsUnlocked(levelID int) bool {
	for _, id := range p.UnlockedLevels {
		if id == levelID {
			return true
		}
	}
	return false
}

// RewardResult is the outcome of applying a finished battle to a user.
type RewardResult struct {
	User      UserProfile  `json:"user"`
	Progress  UserProgress `json:"progress"`
	LeveledUp bool         `json:"leveled_up"`
	OldLevel  int          `json:"old_level"`
	NewLevel  int          `json:"new_level"`
}

// OpponentPrompt is the request for the next opponent line.
type OpponentPrompt struct {
	Level      Level
	Transcript []Message
	Seed       string
	Mode       Mode
}

// AgentPrompt is the request for the user's agent to answer an opponent line.
type AgentPrompt struct {
	UserID       string
	Level        Level
	OpponentLine string
	Mode         Mode
}

// BattleEvent is an entry in a session's event log.
type BattleEvent struct {
	ID          int64  `json:"id"`
	SessionID   string `json:"session_id"`
	SeqNo       int64  `json:"seq_no"`
	EventType   string `json:"event_type"`
	PayloadJSON string `json:"payload_json"`
	CreatedAt   int64  `json:"created_at"`
}

// StudyNote is the post-battle note written for the user's agent.
type StudyNote struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"created_at"`
}
