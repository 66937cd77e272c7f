// Package guard runs the access checks in front of battle operations:
// per-user rate limiting, level unlock and session ownership.
package guard

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fogbreaker/engine/internal/domain"
	"github.com/fogbreaker/engine/internal/levels"
	"github.com/fogbreaker/engine/internal/store"
)

// GuardConfig holds rate limits. A non-positive limit disables rate limiting.
type GuardConfig struct {
	RateLimitPerMinute int
}

// Guard coordinates rate, unlock and ownership checks.
type Guard struct {
	Repo   store.Repository
	Levels *levels.Catalog
	Config GuardConfig
	Now    func() time.Time

	mu         sync.Mutex
	rateCounts map[string]*rateBucket
	lastSweep  int64
}

type rateBucket struct {
	count       int
	windowStart int64
}

// NewGuard creates a Guard with the given dependencies.
func NewGuard(repo store.Repository, catalog *levels.Catalog, cfg GuardConfig) *Guard {
	return &Guard{
		Repo:       repo,
		Levels:     catalog,
		Config:     cfg,
		Now:        time.Now,
		rateCounts: make(map[string]*rateBucket),
	}
}

// CheckStart runs the checks for opening a battle: rate limit, then unlock.
// It short-circuits on the first error.
func (g *Guard) CheckStart(ctx context.Context, userID string, levelID int) error {
	if err := g.CheckRateLimit(userID); err != nil {
		return err
	}
	return g.CheckUnlocked(ctx, userID, levelID)
}

const rateWindowSec = 60

// CheckRateLimit enforces a per-user fixed window of 60 seconds. If the
// count reaches the configured limit, ErrRateLimitExceeded is returned.
// Expired buckets are dropped at most once per window.
func (g *Guard) CheckRateLimit(userID string) error {
	if g.Config.RateLimitPerMinute <= 0 {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.Now().Unix()
	if now-g.lastSweep > rateWindowSec {
		for id, b := range g.rateCounts {
			if now-b.windowStart > rateWindowSec {
				delete(g.rateCounts, id)
			}
		}
		g.lastSweep = now
	}

	bucket, ok := g.rateCounts[userID]
	if !ok {
		g.rateCounts[userID] = &rateBucket{count: 1, windowStart: now}
		return nil
	}

	if now-bucket.windowStart > rateWindowSec {
		bucket.count = 1
		bucket.windowStart = now
		return nil
	}

	if bucket.count >= g.Config.RateLimitPerMinute {
		return domain.ErrRateLimitExceeded
	}

	bucket.count++
	return nil
}

// CheckUnlocked fails with ErrLevelLocked, naming the unlocked levels, when
// levelID is not in the user's unlocked set. Users without progress have
// only the first level unlocked.
func (g *Guard) CheckUnlocked(ctx context.Context, userID string, levelID int) error {
	if _, err := g.Levels.Get(levelID); err != nil {
		return err
	}

	unlocked := []int{1}
	p, err := g.Repo.GetProgress(ctx, userID)
	switch {
	case err == nil:
		unlocked = p.UnlockedLevels
	case !errors.Is(err, domain.ErrProgressNotFound):
		return err
	}

	for _, id := range unlocked {
		if id == levelID {
			return nil
		}
	}
	ids := make([]string, len(unlocked))
	for i, id := range unlocked {
		ids[i] = strconv.Itoa(id)
	}
	return domain.NewEngineError(domain.ErrLevelLocked.Code,
		fmt.Sprintf("关卡未解锁。已解锁关卡：%s", strings.Join(ids, ", ")))
}

// CheckOwner returns ErrForbidden unless userID owns the session.
func (g *Guard) CheckOwner(s *domain.Session, userID string) error {
	if s.UserID != userID {
		return domain.ErrForbidden
	}
	return nil
}
