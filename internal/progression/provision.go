package progression

import (
	"context"
	"errors"

	"github.com/fogbreaker/engine/internal/domain"
	"github.com/fogbreaker/engine/internal/store"
)

// Provision returns the user's profile and progress, creating both on first
// sight. New users start at level 1 with 0 experience and level 1 unlocked.
func (l *Ledger) Provision(ctx context.Context, userID, displayName string) (*domain.UserProfile, *domain.UserProgress, error) {
	var (
		user     *domain.UserProfile
		progress *domain.UserProgress
	)
	err := l.Repo.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		user, err = tx.GetUser(ctx, userID)
		if errors.Is(err, domain.ErrUserNotFound) {
			if displayName == "" {
				displayName = userID
			}
			user = &domain.UserProfile{
				ID:          userID,
				DisplayName: displayName,
				AgentName:   displayName + "的Agent",
				Level:       1,
				CreatedAt:   l.Now(),
			}
			if err := tx.SaveUser(ctx, user); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		progress, err = tx.GetProgress(ctx, userID)
		if errors.Is(err, domain.ErrProgressNotFound) {
			progress = NewProgress(userID, l.Now())
			return tx.SaveProgress(ctx, progress)
		}
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return user, progress, nil
}
