package membership

import (
	"context"
	"errors"
	"fmt"

	"afilia/internal/models"
	"afilia/internal/repositories"
)

// Command is a staged optimistic mutation. Optimistic already carries
// the mutated membership when the command is returned, so callers can
// render it immediately. Commit performs the store write; if it fails
// the optimistic copy is rolled back to its pre-mutation value and the
// failure is returned.
type Command struct {
	Optimistic *models.Membership

	previous   models.Membership
	commit     func(ctx context.Context) error
	committed  bool
	rolledBack bool
}

// Commit writes the staged mutation to the store. On failure the
// optimistic copy is rolled back before the error is returned.
func (c *Command) Commit(ctx context.Context) error {
	if c.committed || c.rolledBack {
		return errors.New("command already settled")
	}
	if err := c.commit(ctx); err != nil {
		c.Rollback()
		return err
	}
	c.committed = true
	return nil
}

// Rollback restores the optimistic copy to its pre-mutation value. It
// is a no-op after a successful commit.
func (c *Command) Rollback() {
	if c.committed || c.rolledBack {
		return
	}
	cards := make([]models.Card, len(c.previous.Cards))
	copy(cards, c.previous.Cards)
	*c.Optimistic = c.previous
	c.Optimistic.Cards = cards
	c.rolledBack = true
}

// StageStatusChange stages a membership status toggle. The returned
// command's Optimistic membership already has the new status; nothing
// is persisted until Commit.
func (s *service) StageStatusChange(ctx context.Context, userID, membershipID uint, status string) (*Command, error) {
	if status != models.StatusActive && status != models.StatusInactive {
		return nil, validationError("status must be %q or %q", models.StatusActive, models.StatusInactive)
	}

	m, err := s.repo.GetByID(ctx, userID, membershipID)
	if err != nil {
		return nil, s.mapStoreErr(err)
	}

	cmd := &Command{
		Optimistic: m,
		previous:   cloneMembership(m),
	}
	m.Status = status

	cmd.commit = func(ctx context.Context) error {
		var lastErr error
		for attempt := 0; attempt <= s.config.MaxWriteRetries; attempt++ {
			if err := s.repo.Update(ctx, m); err != nil {
				if errors.Is(err, repositories.ErrVersionConflict) {
					lastErr = err
					fresh, gerr := s.repo.GetByID(ctx, userID, membershipID)
					if gerr != nil {
						return s.mapStoreErr(gerr)
					}
					// Reapply the toggle on top of the concurrent state.
					fresh.Status = status
					*m = *fresh
					continue
				}
				s.metrics.RecordError("set_status", "store")
				return s.mapStoreErr(err)
			}
			s.cache.InvalidateList(ctx, userID)
			s.metrics.RecordOperation("set_status", status)
			return nil
		}
		s.metrics.RecordError("set_status", "conflict")
		return fmt.Errorf("%w: toggling membership %d: %v", ErrConflict, membershipID, lastErr)
	}

	return cmd, nil
}
