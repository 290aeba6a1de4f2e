package repositories

import (
	"context"
	"errors"

	"afilia/internal/models"
)

var (
	ErrMembershipNotFound = errors.New("membership not found")
	ErrUserNotFound       = errors.New("user not found")
	// ErrVersionConflict means a conditional write lost the race against a
	// concurrent update. Callers retry the read-modify-write.
	ErrVersionConflict = errors.New("membership was modified concurrently")
	// ErrStoreUnavailable wraps transient backend failures.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// MembershipRepository is the persistence contract for memberships.
// Every operation is scoped to one user; timestamps are assigned by
// the store. Update, DeleteVersioned and Consolidate are conditional
// on the membership version last read and return ErrVersionConflict
// when a concurrent writer won; on success the passed entity reflects
// the persisted version and updated_at.
type MembershipRepository interface {
	List(ctx context.Context, userID uint) ([]*models.Membership, error)
	GetByID(ctx context.Context, userID, membershipID uint) (*models.Membership, error)
	FindByName(ctx context.Context, userID uint, name string, category models.Category) (*models.Membership, error)
	Create(ctx context.Context, m *models.Membership) error
	Update(ctx context.Context, m *models.Membership) error
	Delete(ctx context.Context, userID, membershipID uint) error
	DeleteVersioned(ctx context.Context, m *models.Membership) error
	// Consolidate removes the duplicate memberships and writes keep's
	// merged card list atomically, duplicates first so re-parented card
	// rows never collide with their old rows.
	Consolidate(ctx context.Context, keep *models.Membership, duplicateIDs []uint) error
}
