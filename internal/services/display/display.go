// Package display flattens a user's membership set into the active and
// inactive lists shown to the user. Bank memberships contribute one
// item per card; every other category contributes the membership as a
// whole. Both functions are pure.
package display

import (
	"sort"
	"time"

	"afilia/internal/models"
)

// Item is one row of the active or inactive listing: either a whole
// membership or a single card of a bank membership.
type Item struct {
	IsCard         bool            `json:"is_card"`
	MembershipID   uint            `json:"membership_id"`
	MembershipName string          `json:"membership_name"`
	Category       models.Category `json:"category"`
	Status         string          `json:"status"`
	Color          string          `json:"color,omitempty"`
	LogoURL        string          `json:"logo_url,omitempty"`
	Card           *models.Card    `json:"card,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Active returns the items considered active. An unset card or
// membership status defaults to active.
func Active(memberships []*models.Membership) []Item {
	return split(memberships, true)
}

// Inactive returns the items considered inactive.
func Inactive(memberships []*models.Membership) []Item {
	return split(memberships, false)
}

func split(memberships []*models.Membership, wantActive bool) []Item {
	ordered := make([]*models.Membership, len(memberships))
	copy(ordered, memberships)
	// Most recently created membership first; stable to keep insertion
	// order between equal timestamps.
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.After(ordered[j].CreatedAt)
	})

	items := make([]Item, 0, len(ordered))
	for _, m := range ordered {
		if m.Category == models.CategoryBank {
			// Each card is evaluated on its own; the membership status
			// field is advisory here.
			for i := range m.Cards {
				card := m.Cards[i]
				if card.Active() != wantActive {
					continue
				}
				items = append(items, Item{
					IsCard:         true,
					MembershipID:   m.ID,
					MembershipName: m.Name,
					Category:       m.Category,
					Status:         card.Status,
					Color:          m.Color,
					LogoURL:        m.LogoURL,
					Card:           &card,
					CreatedAt:      m.CreatedAt,
				})
			}
			continue
		}

		active := m.Status == models.StatusActive || m.Status == ""
		if active != wantActive {
			continue
		}
		items = append(items, Item{
			MembershipID:   m.ID,
			MembershipName: m.Name,
			Category:       m.Category,
			Status:         m.Status,
			Color:          m.Color,
			LogoURL:        m.LogoURL,
			CreatedAt:      m.CreatedAt,
		})
	}
	return items
}
