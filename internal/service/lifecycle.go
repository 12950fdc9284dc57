package service

import (
	"fmt"
	"time"

	apperrors "cardvault/internal/errors"
	"cardvault/internal/model"
)

// CardLifecycle is the card status state machine.
//
//	ACTIVE  --block-->    BLOCKED
//	BLOCKED --block-->    BLOCKED (no-op)
//	EXPIRED --block-->    rejected
//	any     --activate--> ACTIVE
//	ACTIVE  --expire-->   EXPIRED  when expiryDate < today
type CardLifecycle struct{}

// Block moves an ACTIVE card to BLOCKED. It reports false when the card
// already was blocked.
func (CardLifecycle) Block(card *model.Card) (bool, error) {
	switch card.Status {
	case model.CardStatusBlocked:
		return false, nil
	case model.CardStatusActive:
		card.Status = model.CardStatusBlocked
		return true, nil
	}
	return false, fmt.Errorf("block %s card: %w", card.Status, apperrors.ErrInvalidTransition)
}

// Activate moves the card to ACTIVE from any state.
func (CardLifecycle) Activate(card *model.Card) bool {
	if card.Status == model.CardStatusActive {
		return false
	}
	card.Status = model.CardStatusActive
	return true
}

// Expire moves an ACTIVE card past its expiry date to EXPIRED.
func (CardLifecycle) Expire(card *model.Card, today time.Time) error {
	if card.Status != model.CardStatusActive {
		return fmt.Errorf("expire %s card: %w", card.Status, apperrors.ErrInvalidTransition)
	}
	if !card.ExpiredOn(today) {
		return fmt.Errorf("expire card before its expiry date: %w", apperrors.ErrInvalidTransition)
	}
	card.Status = model.CardStatusExpired
	return nil
}

// CheckUsable fails when the card cannot take part in a transfer today.
// The expiry date is checked as well because the status may lag the sweep.
func (CardLifecycle) CheckUsable(card *model.Card, today time.Time) error {
	switch {
	case card.Status == model.CardStatusBlocked:
		return apperrors.ErrCardBlocked
	case card.Status == model.CardStatusExpired, card.ExpiredOn(today):
		return apperrors.ErrCardExpired
	}
	return nil
}
