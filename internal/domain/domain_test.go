package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestParseMode(t *testing.T) {
	cases := map[string]Mode{
		"real":   ModeReal,
		" REAL ": ModeReal,
		"fast":   ModeFast,
		"":       ModeFast,
		"turbo":  ModeFast,
	}
	for in, want := range cases {
		if got := ParseMode(in); got != want {
			t.Errorf("ParseMode(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestLookupMode(t *testing.T) {
	for in, want := range map[string]Mode{"fast": ModeFast, " Real ": ModeReal} {
		got, err := LookupMode(in)
		if err != nil || got != want {
			t.Errorf("LookupMode(%q) = %s, %v; want %s", in, got, err, want)
		}
	}
	for _, in := range []string{"", "turbo"} {
		if _, err := LookupMode(in); !errors.Is(err, ErrInvalidMode) {
			t.Errorf("LookupMode(%q): expected ErrInvalidMode, got %v", in, err)
		}
	}
}

func TestSession_LastOpponentLine(t *testing.T) {
	s := &Session{}
	if _, ok := s.LastOpponentLine(); ok {
		t.Fatal("expected no opponent line in empty transcript")
	}

	s.Messages = []Message{
		{Sender: SenderOpponent, Text: "first"},
		{Sender: SenderAgent, Text: "reply"},
		{Sender: SenderOpponent, Text: "second"},
		{Sender: SenderAgent, Text: "reply again"},
	}
	m, ok := s.LastOpponentLine()
	if !ok || m.Text != "second" {
		t.Errorf("LastOpponentLine = %q, %v; want second", m.Text, ok)
	}
}

func TestTotals(t *testing.T) {
	b := ScoreBreakdown{Boundary: 30, Questioning: 20, Stability: 20, Action: 15, Empathy: 15}
	if b.Total() != 100 {
		t.Errorf("breakdown total = %d, want 100", b.Total())
	}
	c := TagCounts{Fear: 2, Obligation: 1}
	if c.Total() != 3 {
		t.Errorf("tag total = %d, want 3", c.Total())
	}
}

func TestUserProgress_IsUnlocked(t *testing.T) {
	p := &UserProgress{UnlockedLevels: []int{1, 2}}
	if !p.IsUnlocked(2) || p.IsUnlocked(3) {
		t.Errorf("unexpected unlock state for %v", p.UnlockedLevels)
	}
}

func TestEngineError_IsByCode(t *testing.T) {
	err := NewEngineError(ErrLevelLocked.Code, "关卡未解锁。已解锁关卡：1")
	if !errors.Is(err, ErrLevelLocked) {
		t.Error("expected errors.Is to match by code")
	}
	if errors.Is(err, ErrForbidden) {
		t.Error("expected no match for a different code")
	}

	cause := errors.New("timeout")
	wrapped := fmt.Errorf("advance: %w", WrapEngineError(ErrCollaboratorFailed.Code, "agent line generation failed", cause))
	if !errors.Is(wrapped, ErrCollaboratorFailed) {
		t.Error("expected wrapped collaborator error to match")
	}
	if !errors.Is(wrapped, cause) {
		t.Error("expected cause to be reachable through Unwrap")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(ErrCollaboratorFailed) || !IsRetryable(ErrOptimisticLock) {
		t.Error("collaborator failures and lock conflicts should be retryable")
	}
	if IsRetryable(ErrNoOpponentLine) || IsRetryable(ErrAutoRunDidNotComplete) {
		t.Error("state invariant errors must not be retryable")
	}
}
