package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	apperrors "cardvault/internal/errors"
	"cardvault/internal/model"
	"cardvault/internal/repository"
)

// TransferService moves funds between two cards of the same owner.
type TransferService interface {
	Transfer(ctx context.Context, actorID, fromCardID, toCardID uuid.UUID, amount decimal.Decimal, description string) (*model.Transaction, error)
	ListByUser(ctx context.Context, userID uuid.UUID, page model.Page) (*model.PageResult[model.Transaction], error)
}

type transferService struct {
	store     repository.Store
	lifecycle CardLifecycle
	retry     RetryPolicy
	log       logrus.FieldLogger
	now       func() time.Time
}

// NewTransferService creates a new transfer service.
func NewTransferService(store repository.Store, retry RetryPolicy, log logrus.FieldLogger) TransferService {
	return &transferService{
		store: store,
		retry: retry,
		log:   log,
		now:   utcNow,
	}
}

// utcNow keeps expiry checks on the same calendar as the expiry sweep.
func utcNow() time.Time { return time.Now().UTC() }

// Transfer debits fromCardID and credits toCardID by amount and appends a
// ledger entry. Both cards are locked in id order for the whole unit of work,
// so concurrent transfers on the same card serialize on the row locks.
func (s *transferService) Transfer(ctx context.Context, actorID, fromCardID, toCardID uuid.UUID, amount decimal.Decimal, description string) (*model.Transaction, error) {
	if !amount.IsPositive() || !model.FitsMoneyScale(amount) {
		return nil, apperrors.ErrInvalidAmount
	}
	if len([]rune(description)) > model.MaxDescriptionLength {
		return nil, apperrors.ErrDescriptionTooLong
	}
	if fromCardID == toCardID {
		return nil, apperrors.ErrSameCard
	}

	if _, err := s.store.Users().FindByID(ctx, actorID); err != nil {
		return nil, err
	}

	var record *model.Transaction
	err := retryOnLockTimeout(ctx, s.retry, s.log, func() error {
		record = nil
		return s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
			var err error
			record, err = s.execute(ctx, tx, actorID, fromCardID, toCardID, amount, description)
			return err
		})
	})
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"actor_id":     actorID,
			"from_card_id": fromCardID,
			"to_card_id":   toCardID,
		}).Info("transfer rejected")
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"transaction_id": record.ID,
		"from_card_id":   fromCardID,
		"to_card_id":     toCardID,
		"amount":         amount.StringFixed(2),
	}).Info("transfer completed")
	return record, nil
}

func (s *transferService) execute(ctx context.Context, tx repository.Store, actorID, fromCardID, toCardID uuid.UUID, amount decimal.Decimal, description string) (*model.Transaction, error) {
	locked, err := tx.Cards().LockForUpdate(ctx, fromCardID, toCardID)
	if err != nil {
		return nil, err
	}
	from, to := pick(locked, fromCardID), pick(locked, toCardID)
	if err := ownedBy(from, actorID); err != nil {
		return nil, err
	}
	if err := ownedBy(to, actorID); err != nil {
		return nil, err
	}

	today := s.now()
	if err := s.lifecycle.CheckUsable(from, today); err != nil {
		return nil, err
	}
	if err := s.lifecycle.CheckUsable(to, today); err != nil {
		return nil, err
	}
	if from.Balance.LessThan(amount) {
		return nil, apperrors.ErrInsufficientFunds
	}

	if err := tx.Cards().UpdateBalance(ctx, from.ID, from.Balance.Sub(amount)); err != nil {
		return nil, err
	}
	if err := tx.Cards().UpdateBalance(ctx, to.ID, to.Balance.Add(amount)); err != nil {
		return nil, err
	}

	record := &model.Transaction{
		FromCardID:  from.ID,
		ToCardID:    to.ID,
		Amount:      amount,
		Description: description,
		FromOwnerID: from.OwnerID,
		ToOwnerID:   to.OwnerID,
		CreatedAt:   today.UTC(),
	}
	if err := tx.Transactions().Create(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// ListByUser returns transfers touching any card of userID, newest first.
func (s *transferService) ListByUser(ctx context.Context, userID uuid.UUID, page model.Page) (*model.PageResult[model.Transaction], error) {
	if _, err := s.store.Users().FindByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.Transactions().FindByCardOwner(ctx, userID, page)
}

func pick(cards []model.Card, id uuid.UUID) *model.Card {
	for i := range cards {
		if cards[i].ID == id {
			return &cards[i]
		}
	}
	return nil
}
