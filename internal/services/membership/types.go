package membership

import (
	"time"

	"afilia/internal/models"
)

// CardInput is the caller-supplied card payload. An empty ID gets a
// generated identifier; an empty Status leaves the effective status
// derived from the expiry date.
type CardInput struct {
	ID         string           `json:"id"`
	Type       models.CardType  `json:"type"`
	Brand      models.CardBrand `json:"brand"`
	Level      models.CardLevel `json:"level"`
	Name       string           `json:"name"`
	ExpiryDate string           `json:"expiry_date"`
	Status     string           `json:"status"`
}

// CreateMembershipInput creates a non-bank membership. Bank memberships
// go through CreateBankMembership so the consolidation lookup runs.
type CreateMembershipInput struct {
	Name     string          `json:"name"`
	Category models.Category `json:"category"`
	Color    string          `json:"color"`
	LogoURL  string          `json:"logo_url"`
}

// DeleteCardResult reports the outcome of a card deletion, including
// whether the owning membership was cascaded away.
type DeleteCardResult struct {
	MembershipDeleted bool   `json:"membership_deleted"`
	Remaining         int    `json:"remaining"`
	Message           string `json:"message"`
}

// ConsolidationReport summarizes a duplicate-repair run. A second run
// immediately after a successful one reports zeros.
type ConsolidationReport struct {
	ConsolidatedCount int `json:"consolidated_count"`
	DeletedCount      int `json:"deleted_count"`
}

// Config holds tunables for the membership service.
type Config struct {
	// MaxWriteRetries bounds read-modify-write retries on version conflicts.
	MaxWriteRetries int
	// BankNamePrefix is the token bank membership names are canonically
	// prefixed with.
	BankNamePrefix string
	// Clock supplies the evaluation instant for expiry checks. Tests
	// inject a fixed clock.
	Clock func() time.Time
}

// Default configuration values
const (
	DefaultMaxWriteRetries = 3
	DefaultBankNamePrefix  = "Banco"
)
