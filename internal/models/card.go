package models

import "time"

type CardType string

const (
	CardTypeCredit CardType = "credit"
	CardTypeDebit  CardType = "debit"
)

func (t CardType) Valid() bool {
	return t == CardTypeCredit || t == CardTypeDebit
}

type CardBrand string

const (
	BrandVisa       CardBrand = "visa"
	BrandMastercard CardBrand = "mastercard"
	BrandAmex       CardBrand = "amex"
	BrandCabal      CardBrand = "cabal"
	BrandNaranja    CardBrand = "naranja"
)

var brands = map[CardBrand]bool{
	BrandVisa:       true,
	BrandMastercard: true,
	BrandAmex:       true,
	BrandCabal:      true,
	BrandNaranja:    true,
}

func (b CardBrand) Valid() bool {
	return brands[b]
}

type CardLevel string

const (
	LevelClassic  CardLevel = "classic"
	LevelGold     CardLevel = "gold"
	LevelPlatinum CardLevel = "platinum"
	LevelBlack    CardLevel = "black"
)

var levels = map[CardLevel]bool{
	LevelClassic:  true,
	LevelGold:     true,
	LevelPlatinum: true,
	LevelBlack:    true,
}

func (l CardLevel) Valid() bool {
	return levels[l]
}

// Card is a payment instrument owned by a bank membership. The ID is
// caller-generated. An empty Status means the effective status is
// derived from ExpiryDate.
type Card struct {
	ID           string    `gorm:"primarykey"`
	MembershipID uint      `gorm:"not null;index"`
	Type         CardType  `gorm:"not null"`
	Brand        CardBrand `gorm:"not null"`
	Level        CardLevel `gorm:"not null"`
	Name         string
	// ExpiryDate is the canonical MM/YY string, empty when unset.
	ExpiryDate string
	Status     string
	// Position preserves the order of the owning membership's card list.
	Position  int `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Active reports whether the card counts as active for listing.
// An unset status defaults to active.
func (c Card) Active() bool {
	return c.Status == StatusActive || c.Status == ""
}
