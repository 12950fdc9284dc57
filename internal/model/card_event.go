package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CardEventKind names an administrative or lifecycle change to a card.
type CardEventKind string

const (
	CardEventCreated    CardEventKind = "created"
	CardEventBlocked    CardEventKind = "blocked"
	CardEventActivated  CardEventKind = "activated"
	CardEventExpired    CardEventKind = "expired"
	CardEventBalanceSet CardEventKind = "balance_set"
	CardEventDeleted    CardEventKind = "deleted"
)

// CardEvent is an audit entry for changes that are not ledger transfers.
type CardEvent struct {
	ID         uuid.UUID           `json:"id" gorm:"type:char(36);primaryKey"`
	CardID     uuid.UUID           `json:"card_id" gorm:"type:char(36);not null;index"`
	ActorID    *uuid.UUID          `json:"actor_id,omitempty" gorm:"type:char(36);index"`
	Kind       CardEventKind       `json:"kind" gorm:"type:varchar(32);not null;index"`
	OldBalance decimal.NullDecimal `json:"old_balance" gorm:"type:decimal(20,2)"`
	NewBalance decimal.NullDecimal `json:"new_balance" gorm:"type:decimal(20,2)"`
	CreatedAt  time.Time           `json:"created_at"`
}

// BeforeCreate sets UUID before creating the record.
func (e *CardEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
