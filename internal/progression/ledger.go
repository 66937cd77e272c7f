// Package progression applies finished battles to a user's experience,
// level, best scores and unlocked levels.
package progression

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/fogbreaker/engine/internal/domain"
	"github.com/fogbreaker/engine/internal/levels"
	"github.com/fogbreaker/engine/internal/store"
)

// expThresholds[i] is the experience needed to reach user level i+1.
var expThresholds = []int{0, 100, 250, 500, 800, 1200, 1700, 2300, 3000, 4000}

// MaxUserLevel is the highest reachable user level.
var MaxUserLevel = len(expThresholds)

// LevelForExp returns the user level for an experience total.
func LevelForExp(exp int) int {
	level := 1
	for i, need := range expThresholds {
		if exp >= need {
			level = i + 1
		}
	}
	return level
}

// NewProgress is the starting progress: only the first level unlocked.
func NewProgress(userID string, now time.Time) *domain.UserProgress {
	return &domain.UserProgress{
		UserID:         userID,
		UnlockedLevels: []int{1},
		BestScores:     map[int]int{},
		UpdatedAt:      now,
	}
}

// Ledger records battle rewards.
type Ledger struct {
	Repo    store.Repository
	Catalog *levels.Catalog
	Now     func() time.Time
}

// NewLedger returns a Ledger using the wall clock.
func NewLedger(repo store.Repository, catalog *levels.Catalog) *Ledger {
	return &Ledger{Repo: repo, Catalog: catalog, Now: time.Now}
}

// Reward applies a score in its own transaction.
func (l *Ledger) Reward(ctx context.Context, userID string, levelID, score int) (*domain.RewardResult, error) {
	var res *domain.RewardResult
	err := l.Repo.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		res, err = l.Apply(ctx, tx, userID, levelID, score)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Apply adds score to the user's experience, recomputes the user level,
// keeps the best score per level and unlocks the next level on a passing
// score. It must run inside tx so concurrent rewards for one user serialize.
func (l *Ledger) Apply(ctx context.Context, tx store.Tx, userID string, levelID, score int) (*domain.RewardResult, error) {
	if score < 0 || score > 100 {
		return nil, domain.WrapEngineError(domain.ErrScoreOutOfRange.Code,
			fmt.Sprintf("reward score %d outside [0,100]", score), nil)
	}

	user, err := tx.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	progress, err := tx.GetProgress(ctx, userID)
	if errors.Is(err, domain.ErrProgressNotFound) {
		progress = NewProgress(userID, l.Now())
	} else if err != nil {
		return nil, err
	}

	oldLevel := user.Level
	user.Experience += score
	user.Level = LevelForExp(user.Experience)

	if progress.BestScores == nil {
		progress.BestScores = map[int]int{}
	}
	if prev, ok := progress.BestScores[levelID]; !ok || score > prev {
		progress.BestScores[levelID] = score
	}
	if score >= levels.UnlockScore && levelID < l.Catalog.LastID() {
		next := levelID + 1
		if !progress.IsUnlocked(next) {
			progress.UnlockedLevels = append(progress.UnlockedLevels, next)
			sort.Ints(progress.UnlockedLevels)
		}
	}
	progress.UpdatedAt = l.Now()

	if err := tx.SaveUser(ctx, user); err != nil {
		return nil, err
	}
	if err := tx.SaveProgress(ctx, progress); err != nil {
		return nil, err
	}

	return &domain.RewardResult{
		User:      *user,
		Progress:  *progress,
		LeveledUp: user.Level > oldLevel,
		OldLevel:  oldLevel,
		NewLevel:  user.Level,
	}, nil
}
