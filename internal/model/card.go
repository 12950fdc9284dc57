package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CardStatus is the lifecycle state of a card.
type CardStatus string

const (
	CardStatusActive  CardStatus = "ACTIVE"
	CardStatusBlocked CardStatus = "BLOCKED"
	CardStatusExpired CardStatus = "EXPIRED"
)

// Valid reports whether s is a known status.
func (s CardStatus) Valid() bool {
	switch s {
	case CardStatusActive, CardStatusBlocked, CardStatusExpired:
		return true
	}
	return false
}

// Card is a bank card. The card number is only ever stored encrypted.
type Card struct {
	ID              uuid.UUID       `json:"id" gorm:"type:char(36);primaryKey"`
	EncryptedNumber []byte          `json:"-" gorm:"type:varbinary(128);not null"`
	HolderName      string          `json:"holder_name" gorm:"size:255;not null;index"`
	ExpiryDate      time.Time       `json:"expiry_date" gorm:"type:date;not null;index"`
	Status          CardStatus      `json:"status" gorm:"type:varchar(16);not null;index"`
	Balance         decimal.Decimal `json:"balance" gorm:"type:decimal(20,2);not null;default:0"`
	OwnerID         uuid.UUID       `json:"owner_id" gorm:"type:char(36);not null;index"`
	CreatedAt       time.Time       `json:"created_at" gorm:"autoCreateTime;<-:create"`
	UpdatedAt       time.Time       `json:"updated_at"`

	// MaskedNumber is attached on read for display and never persisted.
	MaskedNumber string `json:"masked_number" gorm:"-"`
}

// BeforeCreate sets UUID before creating the record.
func (c *Card) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// ExpiredOn reports whether the card's expiry date lies strictly before day.
func (c *Card) ExpiredOn(day time.Time) bool {
	return DateOf(c.ExpiryDate).Before(DateOf(day))
}

// DateOf truncates t to midnight of its UTC calendar day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MoneyScale is the number of fractional digits the balance and amount
// columns hold.
const MoneyScale = 2

// FitsMoneyScale reports whether d is representable without rounding.
func FitsMoneyScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(MoneyScale))
}
