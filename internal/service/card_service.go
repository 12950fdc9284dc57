package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"cardvault/internal/cardnumber"
	apperrors "cardvault/internal/errors"
	"cardvault/internal/model"
	"cardvault/internal/notify"
	"cardvault/internal/repository"
)

// CardService is the card vault: card CRUD with encrypted numbers,
// lifecycle transitions and owner scoping.
type CardService interface {
	Create(ctx context.Context, actorID, ownerID uuid.UUID, holderName string, expiryDate time.Time) (*model.Card, error)
	FindByID(ctx context.Context, cardID uuid.UUID) (*model.Card, error)
	FindOwnedBy(ctx context.Context, cardID, userID uuid.UUID) (*model.Card, error)
	Block(ctx context.Context, actorID, cardID uuid.UUID) (*model.Card, error)
	Activate(ctx context.Context, actorID, cardID uuid.UUID) (*model.Card, error)
	Delete(ctx context.Context, actorID, cardID uuid.UUID) error
	SetBalance(ctx context.Context, actorID, cardID uuid.UUID, balance decimal.Decimal) (*model.Card, error)
	ListFiltered(ctx context.Context, requesterID uuid.UUID, role model.Role, filter model.CardFilter, page model.Page) (*model.PageResult[model.Card], error)
}

type cardService struct {
	store     repository.Store
	codec     *cardnumber.Codec
	lifecycle CardLifecycle
	policy    AccessPolicy
	auditor   Auditor
	notifier  notify.Notifier
	log       logrus.FieldLogger
	now       func() time.Time
}

// NewCardService creates a new card service.
func NewCardService(
	store repository.Store,
	codec *cardnumber.Codec,
	auditor Auditor,
	notifier notify.Notifier,
	log logrus.FieldLogger,
) CardService {
	if auditor == nil {
		auditor = nopAuditor{}
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &cardService{
		store:    store,
		codec:    codec,
		auditor:  auditor,
		notifier: notifier,
		log:      log,
		now:      utcNow,
	}
}

// Create issues a new ACTIVE card with a zero balance for ownerID.
func (s *cardService) Create(ctx context.Context, actorID, ownerID uuid.UUID, holderName string, expiryDate time.Time) (*model.Card, error) {
	if _, err := s.store.Users().FindByID(ctx, ownerID); err != nil {
		return nil, err
	}
	if model.DateOf(expiryDate).Before(model.DateOf(s.now())) {
		return nil, apperrors.ErrInvalidExpiry
	}

	number, err := s.codec.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate card number: %w", err)
	}
	encrypted, err := s.codec.Encrypt(number)
	if err != nil {
		return nil, err
	}

	card := &model.Card{
		EncryptedNumber: encrypted,
		HolderName:      strings.TrimSpace(holderName),
		ExpiryDate:      model.DateOf(expiryDate),
		Status:          model.CardStatusActive,
		Balance:         decimal.Zero,
		OwnerID:         ownerID,
	}
	if err := s.store.Cards().Create(ctx, card); err != nil {
		return nil, fmt.Errorf("create card: %w", err)
	}
	card.MaskedNumber = cardnumber.Mask(number)

	s.auditor.Record(ctx, cardEvent(model.CardEventCreated, card.ID, actorID))
	s.log.WithFields(logrus.Fields{"card_id": card.ID, "owner_id": ownerID}).Info("card created")
	return card, nil
}

// FindByID returns a card with its masked number.
func (s *cardService) FindByID(ctx context.Context, cardID uuid.UUID) (*model.Card, error) {
	card, err := s.store.Cards().FindByID(ctx, cardID)
	if err != nil {
		return nil, err
	}
	return s.reveal(card)
}

// FindOwnedBy returns the card only if userID owns it. A foreign card is
// reported as ErrCardNotFound so its existence does not leak.
func (s *cardService) FindOwnedBy(ctx context.Context, cardID, userID uuid.UUID) (*model.Card, error) {
	card, err := s.store.Cards().FindByID(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if err := ownedBy(card, userID); err != nil {
		return nil, err
	}
	return s.reveal(card)
}

// Block blocks a card on behalf of its owner or an admin.
func (s *cardService) Block(ctx context.Context, actorID, cardID uuid.UUID) (*model.Card, error) {
	card, err := s.store.Cards().FindByID(ctx, cardID)
	if err != nil {
		return nil, err
	}
	actor, err := s.store.Users().FindByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.RequireBlock(actor, card); err != nil {
		return nil, err
	}

	changed := false
	card, err = s.transition(ctx, cardID, func(c *model.Card) (bool, error) {
		changed, err = s.lifecycle.Block(c)
		return changed, err
	})
	if err != nil {
		return nil, err
	}

	card, err = s.reveal(card)
	if err != nil {
		return nil, err
	}
	if changed {
		s.auditor.Record(ctx, cardEvent(model.CardEventBlocked, cardID, actorID))
		s.log.WithFields(logrus.Fields{"card_id": cardID, "actor_id": actorID}).Info("card blocked")
		if actor.ID != card.OwnerID {
			s.notifyOwner(ctx, card, s.notifier.CardBlocked)
		}
	}
	return card, nil
}

// Activate sets a card ACTIVE. Callers must have authorized the actor as admin.
func (s *cardService) Activate(ctx context.Context, actorID, cardID uuid.UUID) (*model.Card, error) {
	changed := false
	card, err := s.transition(ctx, cardID, func(c *model.Card) (bool, error) {
		changed = s.lifecycle.Activate(c)
		return changed, nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.auditor.Record(ctx, cardEvent(model.CardEventActivated, cardID, actorID))
		s.log.WithFields(logrus.Fields{"card_id": cardID, "actor_id": actorID}).Info("card activated")
	}
	return s.reveal(card)
}

// Delete removes a card regardless of its balance.
func (s *cardService) Delete(ctx context.Context, actorID, cardID uuid.UUID) error {
	exists, err := s.store.Cards().Exists(ctx, cardID)
	if err != nil {
		return err
	}
	if !exists {
		return apperrors.ErrCardNotFound
	}
	if err := s.store.Cards().Delete(ctx, cardID); err != nil {
		return err
	}
	s.auditor.Record(ctx, cardEvent(model.CardEventDeleted, cardID, actorID))
	s.log.WithFields(logrus.Fields{"card_id": cardID, "actor_id": actorID}).Warn("card deleted")
	return nil
}

// SetBalance overwrites the balance outside the transfer ledger. The change
// is recorded as a card event, never as a transaction.
func (s *cardService) SetBalance(ctx context.Context, actorID, cardID uuid.UUID, balance decimal.Decimal) (*model.Card, error) {
	if balance.IsNegative() {
		return nil, apperrors.ErrNegativeBalance
	}
	if !model.FitsMoneyScale(balance) {
		return nil, apperrors.ErrInvalidAmount
	}

	var (
		card       *model.Card
		oldBalance decimal.Decimal
	)
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		locked, err := lockOne(ctx, tx, cardID)
		if err != nil {
			return err
		}
		oldBalance = locked.Balance
		if err := tx.Cards().UpdateBalance(ctx, cardID, balance); err != nil {
			return err
		}
		locked.Balance = balance
		card = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, balanceEvent(cardID, actorID, oldBalance, balance))
	s.log.WithFields(logrus.Fields{
		"card_id":     cardID,
		"actor_id":    actorID,
		"old_balance": oldBalance.StringFixed(2),
		"new_balance": balance.StringFixed(2),
	}).Warn("card balance overwritten")
	return s.reveal(card)
}

// ListFiltered lists cards matching filter. Non-admins only ever see their own cards.
func (s *cardService) ListFiltered(ctx context.Context, requesterID uuid.UUID, role model.Role, filter model.CardFilter, page model.Page) (*model.PageResult[model.Card], error) {
	if _, err := s.store.Users().FindByID(ctx, requesterID); err != nil {
		return nil, err
	}
	if role != model.RoleAdmin {
		owner := requesterID
		filter.OwnerID = &owner
	}

	result, err := s.store.Cards().Query(ctx, filter, page)
	if err != nil {
		return nil, err
	}
	for i := range result.Items {
		if _, err := s.reveal(&result.Items[i]); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// transition applies apply to the locked card and saves it when it reports a change.
func (s *cardService) transition(ctx context.Context, cardID uuid.UUID, apply func(*model.Card) (bool, error)) (*model.Card, error) {
	var card *model.Card
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		locked, err := lockOne(ctx, tx, cardID)
		if err != nil {
			return err
		}
		changed, err := apply(locked)
		if err != nil {
			return err
		}
		if changed {
			if err := tx.Cards().Save(ctx, locked); err != nil {
				return err
			}
		}
		card = locked
		return nil
	})
	return card, err
}

// reveal attaches the masked number. A blob that cannot be decrypted is a
// data integrity fault and is reported, never replaced by a placeholder.
func (s *cardService) reveal(card *model.Card) (*model.Card, error) {
	masked, err := s.codec.Reveal(card.EncryptedNumber)
	if err != nil {
		s.log.WithError(err).WithField("card_id", card.ID).Error("stored card number cannot be decrypted")
		return nil, err
	}
	card.MaskedNumber = masked
	return card, nil
}

func (s *cardService) notifyOwner(ctx context.Context, card *model.Card, send func(context.Context, model.User, model.Card)) {
	owner, err := s.store.Users().FindByID(ctx, card.OwnerID)
	if err != nil {
		s.log.WithError(err).WithField("card_id", card.ID).Warn("cannot notify card owner")
		return
	}
	send(ctx, *owner, *card)
}

// ownedBy reports ErrCardNotFound unless userID owns card.
func ownedBy(card *model.Card, userID uuid.UUID) error {
	if card == nil || card.OwnerID != userID {
		return apperrors.ErrCardNotFound
	}
	return nil
}

func lockOne(ctx context.Context, tx repository.Store, cardID uuid.UUID) (*model.Card, error) {
	cards, err := tx.Cards().LockForUpdate(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if len(cards) == 0 {
		return nil, apperrors.ErrCardNotFound
	}
	return &cards[0], nil
}
