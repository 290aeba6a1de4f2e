package membership

import (
	"context"

	"afilia/internal/models"
	"afilia/internal/services/display"
)

// Service defines the membership lifecycle operations.
type Service interface {
	// Create path
	CreateBankMembership(ctx context.Context, userID uint, name string, cards []CardInput) (*models.Membership, error)
	CreateMembership(ctx context.Context, userID uint, input CreateMembershipInput) (*models.Membership, error)

	// Read path
	GetMembership(ctx context.Context, userID, membershipID uint) (*models.Membership, error)
	ListMemberships(ctx context.Context, userID uint) ([]*models.Membership, error)
	ListActive(ctx context.Context, userID uint) ([]display.Item, error)
	ListInactive(ctx context.Context, userID uint) ([]display.Item, error)

	// Card lifecycle
	UpdateCard(ctx context.Context, userID, membershipID uint, cardID string, input CardInput) (*models.Membership, error)
	DeleteCard(ctx context.Context, userID, membershipID uint, cardID string) (DeleteCardResult, error)

	// Membership lifecycle
	DeleteMembership(ctx context.Context, userID, membershipID uint) error
	StageStatusChange(ctx context.Context, userID, membershipID uint, status string) (*Command, error)

	// Repair
	ConsolidateDuplicates(ctx context.Context, userID uint) (ConsolidationReport, error)
}

// Cache caches a user's full membership list. Implementations must
// treat failures as misses; the service never fails on cache errors.
type Cache interface {
	GetList(ctx context.Context, userID uint) ([]*models.Membership, bool)
	SetList(ctx context.Context, userID uint, memberships []*models.Membership)
	InvalidateList(ctx context.Context, userID uint)
}

type noopCache struct{}

func (noopCache) GetList(context.Context, uint) ([]*models.Membership, bool) { return nil, false }
func (noopCache) SetList(context.Context, uint, []*models.Membership)        {}
func (noopCache) InvalidateList(context.Context, uint)                       {}
