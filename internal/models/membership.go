package models

import "time"

// Category classifies a membership. Only bank memberships carry cards.
type Category string

const (
	CategoryBank      Category = "bank"
	CategoryClub      Category = "club"
	CategoryHealth    Category = "health"
	CategoryEducation Category = "education"
	CategoryInsurance Category = "insurance"
	CategoryTelecom   Category = "telecom"
	CategoryWallet    Category = "wallet"
	CategoryStreaming Category = "streaming"
	CategoryGym       Category = "gym"
)

var categories = map[Category]bool{
	CategoryBank:      true,
	CategoryClub:      true,
	CategoryHealth:    true,
	CategoryEducation: true,
	CategoryInsurance: true,
	CategoryTelecom:   true,
	CategoryWallet:    true,
	CategoryStreaming: true,
	CategoryGym:       true,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return categories[c]
}

// Membership statuses
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Membership is a user's affiliation record. Bank memberships own at
// least one card at all times; non-bank memberships never carry cards.
type Membership struct {
	ID       uint     `gorm:"primarykey"`
	UserID   uint     `gorm:"not null;index"`
	Name     string   `gorm:"not null"`
	Category Category `gorm:"not null"`
	Status   string   `gorm:"default:'active'"`
	Color    string
	LogoURL  string
	// Version backs the conditional write used for optimistic concurrency.
	Version   uint   `gorm:"not null;default:1"`
	Cards     []Card `gorm:"foreignKey:MembershipID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
