package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"afilia/internal/models"

	"gorm.io/gorm"
)

type membershipRepository struct {
	db *gorm.DB
}

func NewMembershipRepository(db *gorm.DB) MembershipRepository {
	return &membershipRepository{db: db}
}

func (r *membershipRepository) List(ctx context.Context, userID uint) ([]*models.Membership, error) {
	var memberships []*models.Membership
	err := r.db.WithContext(ctx).
		Preload("Cards", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&memberships).Error
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list memberships: %v", ErrStoreUnavailable, err)
	}
	return memberships, nil
}

func (r *membershipRepository) GetByID(ctx context.Context, userID, membershipID uint) (*models.Membership, error) {
	var m models.Membership
	err := r.db.WithContext(ctx).
		Preload("Cards", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("id = ? AND user_id = ?", membershipID, userID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMembershipNotFound
		}
		return nil, fmt.Errorf("%w: failed to get membership: %v", ErrStoreUnavailable, err)
	}
	return &m, nil
}

// FindByName matches the name exactly, case-sensitive. Consolidation
// depends on this lookup never normalizing case or whitespace.
func (r *membershipRepository) FindByName(ctx context.Context, userID uint, name string, category models.Category) (*models.Membership, error) {
	var m models.Membership
	err := r.db.WithContext(ctx).
		Preload("Cards", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("user_id = ? AND name = ? AND category = ?", userID, name, category).
		Order("created_at ASC, id ASC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMembershipNotFound
		}
		return nil, fmt.Errorf("%w: failed to find membership by name: %v", ErrStoreUnavailable, err)
	}
	return &m, nil
}

func (r *membershipRepository) Create(ctx context.Context, m *models.Membership) error {
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("%w: failed to create membership: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// writeVersioned performs the conditional membership write inside tx:
// the row update guarded by the version the caller last read, then a
// wholesale replacement of the embedded card list. Zero affected rows
// on an existing record means a concurrent writer won.
func writeVersioned(tx *gorm.DB, m *models.Membership, now time.Time) error {
	result := tx.Model(&models.Membership{}).
		Where("id = ? AND user_id = ? AND version = ?", m.ID, m.UserID, m.Version).
		Updates(map[string]interface{}{
			"name":       m.Name,
			"status":     m.Status,
			"color":      m.Color,
			"logo_url":   m.LogoURL,
			"updated_at": now,
			"version":    gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var exists int64
		if err := tx.Model(&models.Membership{}).
			Where("id = ? AND user_id = ?", m.ID, m.UserID).
			Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return ErrMembershipNotFound
		}
		return ErrVersionConflict
	}

	if err := tx.Where("membership_id = ?", m.ID).Delete(&models.Card{}).Error; err != nil {
		return err
	}
	for i := range m.Cards {
		m.Cards[i].MembershipID = m.ID
		m.Cards[i].Position = i
	}
	if len(m.Cards) > 0 {
		if err := tx.Create(&m.Cards).Error; err != nil {
			return err
		}
	}
	return nil
}

// Update writes the membership and its full card list conditionally on
// the version the caller last read. On success the entity reflects the
// persisted version and updated_at; on zero affected rows the caller
// must re-read and retry.
func (r *membershipRepository) Update(ctx context.Context, m *models.Membership) error {
	now := time.Now()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return writeVersioned(tx, m, now)
	})
	if err != nil {
		if errors.Is(err, ErrVersionConflict) || errors.Is(err, ErrMembershipNotFound) {
			return err
		}
		return fmt.Errorf("%w: failed to update membership: %v", ErrStoreUnavailable, err)
	}
	m.Version++
	m.UpdatedAt = now
	return nil
}

// Consolidate removes the duplicate memberships and writes keep's
// merged card list in a single transaction. The duplicates go first so
// their card rows are gone, FK cascade included, before the merged
// list re-inserts cards that carry the same primary keys. The keep
// write stays conditional on the version last read.
func (r *membershipRepository) Consolidate(ctx context.Context, keep *models.Membership, duplicateIDs []uint) error {
	now := time.Now()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(duplicateIDs) > 0 {
			if err := tx.Where("user_id = ? AND id IN ?", keep.UserID, duplicateIDs).
				Delete(&models.Membership{}).Error; err != nil {
				return err
			}
		}
		return writeVersioned(tx, keep, now)
	})
	if err != nil {
		if errors.Is(err, ErrVersionConflict) || errors.Is(err, ErrMembershipNotFound) {
			return err
		}
		return fmt.Errorf("%w: failed to consolidate memberships: %v", ErrStoreUnavailable, err)
	}
	keep.Version++
	keep.UpdatedAt = now
	return nil
}

func (r *membershipRepository) Delete(ctx context.Context, userID, membershipID uint) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", membershipID, userID).
		Delete(&models.Membership{})
	if result.Error != nil {
		return fmt.Errorf("%w: failed to delete membership: %v", ErrStoreUnavailable, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrMembershipNotFound
	}
	return nil
}

// DeleteVersioned removes the membership only if it still carries the
// version the caller last read. The card-deletion cascade depends on
// this guard: a card added concurrently after the read bumps the
// version, the delete affects zero rows, and the caller re-reads
// instead of destroying the new card with the membership.
func (r *membershipRepository) DeleteVersioned(ctx context.Context, m *models.Membership) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND user_id = ? AND version = ?", m.ID, m.UserID, m.Version).
			Delete(&models.Membership{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var exists int64
			if err := tx.Model(&models.Membership{}).
				Where("id = ? AND user_id = ?", m.ID, m.UserID).
				Count(&exists).Error; err != nil {
				return err
			}
			if exists == 0 {
				return ErrMembershipNotFound
			}
			return ErrVersionConflict
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrVersionConflict) || errors.Is(err, ErrMembershipNotFound) {
			return err
		}
		return fmt.Errorf("%w: failed to delete membership: %v", ErrStoreUnavailable, err)
	}
	return nil
}
