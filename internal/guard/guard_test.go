package guard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fogbreaker/engine/internal/domain"
	"github.com/fogbreaker/engine/internal/levels"
	"github.com/fogbreaker/engine/internal/store"
)

// setupGuard creates a memory store with one user's progress and a Guard.
func setupGuard(t *testing.T, unlocked []int, limit int) *Guard {
	t.Helper()
	repo := store.NewMemory()
	if unlocked != nil {
		p := &domain.UserProgress{UserID: "u1", UnlockedLevels: unlocked, BestScores: map[int]int{}}
		if err := repo.SaveProgress(context.Background(), p); err != nil {
			t.Fatalf("SaveProgress: %v", err)
		}
	}
	return NewGuard(repo, levels.Default(), GuardConfig{RateLimitPerMinute: limit})
}

func TestCheckRateLimit_UnderLimit(t *testing.T) {
	g := setupGuard(t, nil, 5)
	for i := 0; i < 5; i++ {
		if err := g.CheckRateLimit("u1"); err != nil {
			t.Fatalf("call %d: unexpected error: %v", i+1, err)
		}
	}
}

func TestCheckRateLimit_OverLimit(t *testing.T) {
	g := setupGuard(t, nil, 5)
	for i := 0; i < 5; i++ {
		g.CheckRateLimit("u1")
	}
	err := g.CheckRateLimit("u1")
	if !errors.Is(err, domain.ErrRateLimitExceeded) {
		t.Fatalf("expected ErrRateLimitExceeded, got %v", err)
	}
	// Other users have their own bucket.
	if err := g.CheckRateLimit("u2"); err != nil {
		t.Fatalf("u2: unexpected error: %v", err)
	}
}

func TestCheckRateLimit_WindowResets(t *testing.T) {
	g := setupGuard(t, nil, 1)
	now := time.Unix(1700000000, 0)
	g.Now = func() time.Time { return now }

	if err := g.CheckRateLimit("u1"); err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := g.CheckRateLimit("u1"); !errors.Is(err, domain.ErrRateLimitExceeded) {
		t.Fatalf("expected ErrRateLimitExceeded, got %v", err)
	}
	now = now.Add(61 * time.Second)
	if err := g.CheckRateLimit("u1"); err != nil {
		t.Fatalf("after window: %v", err)
	}
}

func TestCheckRateLimit_PrunesExpiredBuckets(t *testing.T) {
	g := setupGuard(t, nil, 5)
	now := time.Unix(1700000000, 0)
	g.Now = func() time.Time { return now }

	g.CheckRateLimit("u1")
	g.CheckRateLimit("u3")

	now = now.Add(30 * time.Second)
	g.CheckRateLimit("u2")
	if len(g.rateCounts) != 3 {
		t.Fatalf("expected 3 buckets, got %d", len(g.rateCounts))
	}

	// u1 and u3 are past their window, u2 is not.
	now = now.Add(45 * time.Second)
	if err := g.CheckRateLimit("u4"); err != nil {
		t.Fatalf("u4: unexpected error: %v", err)
	}
	if len(g.rateCounts) != 2 {
		t.Fatalf("expected 2 buckets after sweep, got %d", len(g.rateCounts))
	}
	for _, id := range []string{"u2", "u4"} {
		if _, ok := g.rateCounts[id]; !ok {
			t.Errorf("expected %s bucket kept", id)
		}
	}
}

func TestCheckRateLimit_Disabled(t *testing.T) {
	g := setupGuard(t, nil, 0)
	for i := 0; i < 100; i++ {
		if err := g.CheckRateLimit("u1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}

func TestCheckUnlocked(t *testing.T) {
	ctx := context.Background()
	g := setupGuard(t, []int{1, 2}, 0)

	if err := g.CheckUnlocked(ctx, "u1", 2); err != nil {
		t.Fatalf("level 2: %v", err)
	}

	err := g.CheckUnlocked(ctx, "u1", 3)
	if !errors.Is(err, domain.ErrLevelLocked) {
		t.Fatalf("expected ErrLevelLocked, got %v", err)
	}
	var ee *domain.EngineError
	if !errors.As(err, &ee) || ee.Message != "关卡未解锁。已解锁关卡：1, 2" {
		t.Errorf("unexpected message: %v", err)
	}

	if err := g.CheckUnlocked(ctx, "u1", 99); !errors.Is(err, domain.ErrLevelNotFound) {
		t.Errorf("expected ErrLevelNotFound, got %v", err)
	}
}

func TestCheckUnlocked_NoProgress(t *testing.T) {
	ctx := context.Background()
	g := setupGuard(t, nil, 0)

	if err := g.CheckUnlocked(ctx, "new-user", 1); err != nil {
		t.Fatalf("level 1: %v", err)
	}
	if err := g.CheckUnlocked(ctx, "new-user", 2); !errors.Is(err, domain.ErrLevelLocked) {
		t.Fatalf("expected ErrLevelLocked, got %v", err)
	}
}

func TestCheckStart_ShortCircuits(t *testing.T) {
	g := setupGuard(t, []int{1}, 1)
	ctx := context.Background()

	if err := g.CheckStart(ctx, "u1", 1); err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := g.CheckStart(ctx, "u1", 5); !errors.Is(err, domain.ErrRateLimitExceeded) {
		t.Fatalf("expected rate limit before unlock check, got %v", err)
	}
}

func TestCheckOwner(t *testing.T) {
	g := setupGuard(t, nil, 0)
	s := &domain.Session{ID: "s1", UserID: "u1"}
	if err := g.CheckOwner(s, "u1"); err != nil {
		t.Fatalf("owner: %v", err)
	}
	if err := g.CheckOwner(s, "u2"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}
