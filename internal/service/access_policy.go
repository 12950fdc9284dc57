package service

import (
	apperrors "cardvault/internal/errors"
	"cardvault/internal/model"
)

// AccessPolicy decides whether an actor may act on a card.
type AccessPolicy struct{}

// CanBlock allows admins and the card owner.
func (AccessPolicy) CanBlock(actor *model.User, card *model.Card) bool {
	return actor.IsAdmin() || actor.ID == card.OwnerID
}

// CanManage allows administrative operations to admins only.
func (AccessPolicy) CanManage(actor *model.User) bool {
	return actor.IsAdmin()
}

// RequireBlock returns ErrAccessDenied unless CanBlock holds.
func (p AccessPolicy) RequireBlock(actor *model.User, card *model.Card) error {
	if !p.CanBlock(actor, card) {
		return apperrors.ErrAccessDenied
	}
	return nil
}

// RequireManage returns ErrAccessDenied unless CanManage holds.
func (p AccessPolicy) RequireManage(actor *model.User) error {
	if !p.CanManage(actor) {
		return apperrors.ErrAccessDenied
	}
	return nil
}
