package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CardFilter lists optional card predicates. Set fields are ANDed together;
// nil or empty fields impose no constraint.
type CardFilter struct {
	OwnerID    *uuid.UUID
	Status     *CardStatus
	MinBalance *decimal.Decimal
	MaxBalance *decimal.Decimal
	ExpiryFrom *time.Time
	ExpiryTo   *time.Time
	// HolderName matches as a case-insensitive substring.
	HolderName string
}

// Matches evaluates the filter against a single card.
func (f CardFilter) Matches(c *Card) bool {
	if f.OwnerID != nil && c.OwnerID != *f.OwnerID {
		return false
	}
	if f.Status != nil && c.Status != *f.Status {
		return false
	}
	if f.MinBalance != nil && c.Balance.LessThan(*f.MinBalance) {
		return false
	}
	if f.MaxBalance != nil && c.Balance.GreaterThan(*f.MaxBalance) {
		return false
	}
	expiry := DateOf(c.ExpiryDate)
	if f.ExpiryFrom != nil && expiry.Before(DateOf(*f.ExpiryFrom)) {
		return false
	}
	if f.ExpiryTo != nil && expiry.After(DateOf(*f.ExpiryTo)) {
		return false
	}
	if f.HolderName != "" && !strings.Contains(strings.ToLower(c.HolderName), strings.ToLower(f.HolderName)) {
		return false
	}
	return true
}
