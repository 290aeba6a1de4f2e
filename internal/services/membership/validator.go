package membership

import (
	"time"

	"afilia/internal/expiry"
	"afilia/internal/models"

	"github.com/google/uuid"
)

func validateStatus(status string) error {
	switch status {
	case "", models.StatusActive, models.StatusInactive:
		return nil
	}
	return validationError("status must be %q or %q", models.StatusActive, models.StatusInactive)
}

func cardTriple(t models.CardType, b models.CardBrand, l models.CardLevel) string {
	return string(t) + "|" + string(b) + "|" + string(l)
}

func validateCardInput(input CardInput, now time.Time) error {
	if !input.Type.Valid() {
		return validationError("invalid card type %q", input.Type)
	}
	if !input.Brand.Valid() {
		return validationError("invalid card brand %q", input.Brand)
	}
	if !input.Level.Valid() {
		return validationError("invalid card level %q", input.Level)
	}
	if !expiry.Validate(input.ExpiryDate, now) {
		return validationError("invalid expiry date %q", input.ExpiryDate)
	}
	return validateStatus(input.Status)
}

// buildCards validates the batch against the membership's existing card
// list and converts it to model cards. A (type, brand, level) triple
// already present, or repeated within the batch, is rejected. Missing
// card IDs are generated.
func buildCards(inputs []CardInput, existing []models.Card, now time.Time) ([]models.Card, error) {
	triples := make(map[string]bool, len(existing)+len(inputs))
	ids := make(map[string]bool, len(existing)+len(inputs))
	for _, c := range existing {
		triples[cardTriple(c.Type, c.Brand, c.Level)] = true
		ids[c.ID] = true
	}

	cards := make([]models.Card, 0, len(inputs))
	for _, input := range inputs {
		if err := validateCardInput(input, now); err != nil {
			return nil, err
		}
		triple := cardTriple(input.Type, input.Brand, input.Level)
		if triples[triple] {
			return nil, validationError("duplicate card %s %s %s", input.Type, input.Brand, input.Level)
		}
		triples[triple] = true

		id := input.ID
		if id == "" {
			id = uuid.NewString()
		}
		if ids[id] {
			return nil, validationError("duplicate card id %q", id)
		}
		ids[id] = true

		cards = append(cards, models.Card{
			ID:         id,
			Type:       input.Type,
			Brand:      input.Brand,
			Level:      input.Level,
			Name:       input.Name,
			ExpiryDate: input.ExpiryDate,
			Status:     input.Status,
			Position:   len(existing) + len(cards),
		})
	}
	return cards, nil
}
