package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MaxDescriptionLength bounds Transaction.Description.
const MaxDescriptionLength = 200

// Transaction is an append-only record of a completed card-to-card transfer.
type Transaction struct {
	ID          uuid.UUID       `json:"id" gorm:"type:char(36);primaryKey"`
	FromCardID  uuid.UUID       `json:"from_card_id" gorm:"type:char(36);not null;index"`
	ToCardID    uuid.UUID       `json:"to_card_id" gorm:"type:char(36);not null;index"`
	Amount      decimal.Decimal `json:"amount" gorm:"type:decimal(20,2);not null"`
	Description string          `json:"description,omitempty" gorm:"size:200"`
	// Owner ids are captured at transfer time so the ledger stays queryable after card deletion.
	FromOwnerID uuid.UUID `json:"-" gorm:"type:char(36);not null;index"`
	ToOwnerID   uuid.UUID `json:"-" gorm:"type:char(36);not null;index"`
	CreatedAt   time.Time `json:"created_at" gorm:"index"`
}

// BeforeCreate sets UUID before creating the record.
func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
