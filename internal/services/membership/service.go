package membership

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"afilia/internal/models"
	"afilia/internal/repositories"
	"afilia/internal/services/display"
)

type service struct {
	repo    repositories.MembershipRepository
	cache   Cache
	config  Config
	metrics MetricsCollector
}

// NewService creates a new membership service.
func NewService(repo repositories.MembershipRepository, cache Cache, config Config, metrics MetricsCollector) Service {
	if repo == nil {
		panic("repo is required")
	}
	if cache == nil {
		cache = noopCache{}
	}
	if metrics == nil {
		metrics = NoopMetricsCollector{}
	}
	if config.MaxWriteRetries == 0 {
		config.MaxWriteRetries = DefaultMaxWriteRetries
	}
	if config.BankNamePrefix == "" {
		config.BankNamePrefix = DefaultBankNamePrefix
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}

	return &service{
		repo:    repo,
		cache:   cache,
		config:  config,
		metrics: metrics,
	}
}

// CreateBankMembership either creates a new bank membership or, when
// one with the same name already exists for the user, merges the cards
// into it. The merge is a read-modify-write retried on version
// conflicts so a concurrent card addition is never silently lost.
func (s *service) CreateBankMembership(ctx context.Context, userID uint, name string, cards []CardInput) (*models.Membership, error) {
	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration("create_bank_membership", time.Since(start)) }()

	if name == "" {
		return nil, validationError("membership name is required")
	}
	name = s.canonicalBankName(name)
	if len(cards) == 0 {
		return nil, validationError("a bank membership requires at least one card")
	}

	var lastErr error
	for attempt := 0; attempt <= s.config.MaxWriteRetries; attempt++ {
		existing, err := s.repo.FindByName(ctx, userID, name, models.CategoryBank)
		if errors.Is(err, repositories.ErrMembershipNotFound) {
			built, err := buildCards(cards, nil, s.config.Clock())
			if err != nil {
				s.metrics.RecordError("create_bank_membership", "validation")
				return nil, err
			}
			m := &models.Membership{
				UserID:   userID,
				Name:     name,
				Category: models.CategoryBank,
				Status:   models.StatusActive,
				Cards:    built,
			}
			if err := s.repo.Create(ctx, m); err != nil {
				s.metrics.RecordError("create_bank_membership", "store")
				return nil, s.mapStoreErr(err)
			}
			s.cache.InvalidateList(ctx, userID)
			s.metrics.RecordOperation("create_bank_membership", "created")
			return m, nil
		}
		if err != nil {
			return nil, s.mapStoreErr(err)
		}

		built, err := buildCards(cards, existing.Cards, s.config.Clock())
		if err != nil {
			s.metrics.RecordError("create_bank_membership", "validation")
			return nil, err
		}
		existing.Cards = append(existing.Cards, built...)

		if err := s.repo.Update(ctx, existing); err != nil {
			if errors.Is(err, repositories.ErrVersionConflict) {
				lastErr = err
				continue
			}
			s.metrics.RecordError("create_bank_membership", "store")
			return nil, s.mapStoreErr(err)
		}
		s.cache.InvalidateList(ctx, userID)
		s.metrics.RecordOperation("create_bank_membership", "merged")
		return existing, nil
	}

	s.metrics.RecordError("create_bank_membership", "conflict")
	return nil, fmt.Errorf("%w: merging cards into %q: %v", ErrConflict, name, lastErr)
}

// CreateMembership creates a non-bank membership. No consolidation
// lookup runs; same-named non-bank memberships stay independent.
func (s *service) CreateMembership(ctx context.Context, userID uint, input CreateMembershipInput) (*models.Membership, error) {
	if input.Name == "" {
		return nil, validationError("membership name is required")
	}
	if !input.Category.Valid() {
		return nil, validationError("invalid category %q", input.Category)
	}
	if input.Category == models.CategoryBank {
		return nil, validationError("bank memberships must be created with cards")
	}

	m := &models.Membership{
		UserID:   userID,
		Name:     input.Name,
		Category: input.Category,
		Status:   models.StatusActive,
		Color:    input.Color,
		LogoURL:  input.LogoURL,
	}
	if err := s.repo.Create(ctx, m); err != nil {
		s.metrics.RecordError("create_membership", "store")
		return nil, s.mapStoreErr(err)
	}
	s.cache.InvalidateList(ctx, userID)
	s.metrics.RecordOperation("create_membership", "created")
	return m, nil
}

func (s *service) GetMembership(ctx context.Context, userID, membershipID uint) (*models.Membership, error) {
	m, err := s.repo.GetByID(ctx, userID, membershipID)
	if err != nil {
		return nil, s.mapStoreErr(err)
	}
	return m, nil
}

func (s *service) ListMemberships(ctx context.Context, userID uint) ([]*models.Membership, error) {
	if memberships, ok := s.cache.GetList(ctx, userID); ok {
		return memberships, nil
	}
	memberships, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, s.mapStoreErr(err)
	}
	s.cache.SetList(ctx, userID, memberships)
	return memberships, nil
}

func (s *service) ListActive(ctx context.Context, userID uint) ([]display.Item, error) {
	memberships, err := s.ListMemberships(ctx, userID)
	if err != nil {
		return nil, err
	}
	return display.Active(memberships), nil
}

func (s *service) ListInactive(ctx context.Context, userID uint) ([]display.Item, error) {
	memberships, err := s.ListMemberships(ctx, userID)
	if err != nil {
		return nil, err
	}
	return display.Inactive(memberships), nil
}

// UpdateCard mutates a card in place. The card ID is immutable; any ID
// in the input is ignored.
func (s *service) UpdateCard(ctx context.Context, userID, membershipID uint, cardID string, input CardInput) (*models.Membership, error) {
	var lastErr error
	for attempt := 0; attempt <= s.config.MaxWriteRetries; attempt++ {
		m, err := s.repo.GetByID(ctx, userID, membershipID)
		if err != nil {
			return nil, s.mapStoreErr(err)
		}

		idx := -1
		for i := range m.Cards {
			if m.Cards[i].ID == cardID {
				idx = i
				break
			}
		}
		if idx == -1 {
			return nil, fmt.Errorf("%w: card %q", ErrCardNotFound, cardID)
		}

		if err := validateCardInput(input, s.config.Clock()); err != nil {
			s.metrics.RecordError("update_card", "validation")
			return nil, err
		}
		triple := cardTriple(input.Type, input.Brand, input.Level)
		for i := range m.Cards {
			if i == idx {
				continue
			}
			if cardTriple(m.Cards[i].Type, m.Cards[i].Brand, m.Cards[i].Level) == triple {
				s.metrics.RecordError("update_card", "validation")
				return nil, validationError("duplicate card %s %s %s", input.Type, input.Brand, input.Level)
			}
		}

		card := &m.Cards[idx]
		card.Type = input.Type
		card.Brand = input.Brand
		card.Level = input.Level
		card.Name = input.Name
		card.ExpiryDate = input.ExpiryDate
		card.Status = input.Status

		if err := s.repo.Update(ctx, m); err != nil {
			if errors.Is(err, repositories.ErrVersionConflict) {
				lastErr = err
				continue
			}
			s.metrics.RecordError("update_card", "store")
			return nil, s.mapStoreErr(err)
		}
		s.cache.InvalidateList(ctx, userID)
		s.metrics.RecordOperation("update_card", "updated")
		return m, nil
	}
	s.metrics.RecordError("update_card", "conflict")
	return nil, fmt.Errorf("%w: updating card %q: %v", ErrConflict, cardID, lastErr)
}

// DeleteCard removes a card and cascades the membership deletion when a
// bank membership would be left with zero cards. A membership that is
// already gone settles as deleted so an optimistic caller retrying the
// cascade converges instead of failing.
func (s *service) DeleteCard(ctx context.Context, userID, membershipID uint, cardID string) (DeleteCardResult, error) {
	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration("delete_card", time.Since(start)) }()

	var lastErr error
	for attempt := 0; attempt <= s.config.MaxWriteRetries; attempt++ {
		m, err := s.repo.GetByID(ctx, userID, membershipID)
		if errors.Is(err, repositories.ErrMembershipNotFound) {
			s.metrics.RecordOperation("delete_card", "already_removed")
			return DeleteCardResult{
				MembershipDeleted: true,
				Message:           "membership not found, already removed",
			}, nil
		}
		if err != nil {
			return DeleteCardResult{}, s.mapStoreErr(err)
		}

		remaining := make([]models.Card, 0, len(m.Cards))
		for _, c := range m.Cards {
			if c.ID != cardID {
				remaining = append(remaining, c)
			}
		}
		if len(remaining) == len(m.Cards) {
			return DeleteCardResult{}, fmt.Errorf("%w: card %q", ErrCardNotFound, cardID)
		}

		if m.Category == models.CategoryBank && len(remaining) == 0 {
			// The delete is conditional on the version just read: a card
			// added concurrently bumps it, the delete loses, and the retry
			// re-reads and takes the non-cascade branch instead of
			// destroying the new card.
			if err := s.repo.DeleteVersioned(ctx, m); err != nil {
				if errors.Is(err, repositories.ErrVersionConflict) {
					lastErr = err
					continue
				}
				if errors.Is(err, repositories.ErrMembershipNotFound) {
					// A concurrent deletion got there first; same outcome.
					s.metrics.RecordOperation("delete_card", "already_removed")
					return DeleteCardResult{
						MembershipDeleted: true,
						Message:           "membership not found, already removed",
					}, nil
				}
				s.metrics.RecordError("delete_card", "store")
				return DeleteCardResult{}, s.mapStoreErr(err)
			}
			s.cache.InvalidateList(ctx, userID)
			s.metrics.RecordOperation("delete_card", "cascaded")
			return DeleteCardResult{
				MembershipDeleted: true,
				Message:           "last card removed, membership deleted",
			}, nil
		}

		m.Cards = remaining
		if err := s.repo.Update(ctx, m); err != nil {
			if errors.Is(err, repositories.ErrVersionConflict) {
				lastErr = err
				continue
			}
			s.metrics.RecordError("delete_card", "store")
			return DeleteCardResult{}, s.mapStoreErr(err)
		}
		s.cache.InvalidateList(ctx, userID)
		s.metrics.RecordOperation("delete_card", "removed")
		return DeleteCardResult{
			Remaining: len(remaining),
			Message:   fmt.Sprintf("card removed, %d remaining", len(remaining)),
		}, nil
	}
	s.metrics.RecordError("delete_card", "conflict")
	return DeleteCardResult{}, fmt.Errorf("%w: deleting card %q: %v", ErrConflict, cardID, lastErr)
}

// DeleteMembership removes the record unconditionally; embedded cards
// go with it.
func (s *service) DeleteMembership(ctx context.Context, userID, membershipID uint) error {
	if err := s.repo.Delete(ctx, userID, membershipID); err != nil {
		return s.mapStoreErr(err)
	}
	s.cache.InvalidateList(ctx, userID)
	s.metrics.RecordOperation("delete_membership", "deleted")
	return nil
}

// canonicalBankName ensures the name starts with the bank indicator
// token. Matching stays case-sensitive and exact beyond the prefix.
func (s *service) canonicalBankName(name string) string {
	prefix := s.config.BankNamePrefix
	if prefix == "" || name == prefix || strings.HasPrefix(name, prefix+" ") {
		return name
	}
	return prefix + " " + name
}

func (s *service) mapStoreErr(err error) error {
	switch {
	case errors.Is(err, repositories.ErrMembershipNotFound):
		return ErrNotFound
	case errors.Is(err, repositories.ErrVersionConflict):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case errors.Is(err, repositories.ErrStoreUnavailable):
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}

func cloneMembership(m *models.Membership) models.Membership {
	out := *m
	out.Cards = make([]models.Card, len(m.Cards))
	copy(out.Cards, m.Cards)
	return out
}
