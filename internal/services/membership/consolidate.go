package membership

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"afilia/internal/models"
	"afilia/internal/repositories"
)

// ConsolidateDuplicates repairs duplicate records left behind by
// consolidation races or legacy data. Memberships are grouped by name;
// for every group with more than one member the earliest-created record
// is kept, every card from the others is unioned into it in discovery
// order, and the rest are deleted. Running it again right away reports
// zeros.
func (s *service) ConsolidateDuplicates(ctx context.Context, userID uint) (ConsolidationReport, error) {
	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration("consolidate_duplicates", time.Since(start)) }()

	var report ConsolidationReport

	memberships, err := s.repo.List(ctx, userID)
	if err != nil {
		return report, s.mapStoreErr(err)
	}

	// Earliest first so group[0] is always the record to keep.
	ordered := make([]*models.Membership, len(memberships))
	copy(ordered, memberships)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].ID < ordered[j].ID
		}
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	groups := make(map[string][]*models.Membership)
	var names []string
	for _, m := range ordered {
		if len(groups[m.Name]) == 0 {
			names = append(names, m.Name)
		}
		groups[m.Name] = append(groups[m.Name], m)
	}

	for _, name := range names {
		group := groups[name]
		if len(group) < 2 {
			continue
		}
		keep := group[0]
		duplicates := group[1:]

		if err := s.mergeGroup(ctx, userID, keep, duplicates); err != nil {
			return report, err
		}
		report.DeletedCount += len(duplicates)
		report.ConsolidatedCount++
	}

	if report.ConsolidatedCount > 0 {
		s.cache.InvalidateList(ctx, userID)
		s.metrics.RecordConsolidation(report.ConsolidatedCount, report.DeletedCount)
	}
	return report, nil
}

// mergeGroup unions the duplicates' cards into keep and hands the
// merged list plus the duplicate ids to the store in one transaction,
// re-reading and re-merging on version conflicts. The duplicates must
// go in the same write: their card rows carry the same primary keys
// the merged list re-inserts under keep.
func (s *service) mergeGroup(ctx context.Context, userID uint, keep *models.Membership, duplicates []*models.Membership) error {
	duplicateIDs := make([]uint, len(duplicates))
	for i, dup := range duplicates {
		duplicateIDs[i] = dup.ID
	}

	var lastErr error
	for attempt := 0; attempt <= s.config.MaxWriteRetries; attempt++ {
		seen := make(map[string]bool, len(keep.Cards))
		for _, c := range keep.Cards {
			seen[c.ID] = true
		}
		for _, dup := range duplicates {
			for _, card := range dup.Cards {
				if seen[card.ID] {
					continue
				}
				seen[card.ID] = true
				card.MembershipID = keep.ID
				keep.Cards = append(keep.Cards, card)
			}
		}

		if err := s.repo.Consolidate(ctx, keep, duplicateIDs); err != nil {
			if errors.Is(err, repositories.ErrVersionConflict) {
				lastErr = err
				fresh, gerr := s.repo.GetByID(ctx, userID, keep.ID)
				if gerr != nil {
					return s.mapStoreErr(gerr)
				}
				*keep = *fresh
				continue
			}
			s.metrics.RecordError("consolidate_duplicates", "store")
			return s.mapStoreErr(err)
		}
		return nil
	}
	s.metrics.RecordError("consolidate_duplicates", "conflict")
	return fmt.Errorf("%w: merging duplicates of %q: %v", ErrConflict, keep.Name, lastErr)
}
