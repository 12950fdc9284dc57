package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"cardvault/internal/model"
	"cardvault/internal/notify"
	"cardvault/internal/repository"
)

// ExpirySweeper moves ACTIVE cards past their expiry date to EXPIRED.
type ExpirySweeper struct {
	store     repository.Store
	lifecycle CardLifecycle
	auditor   Auditor
	notifier  notify.Notifier
	log       logrus.FieldLogger
}

// NewExpirySweeper creates a sweeper. auditor and notifier may be nil.
func NewExpirySweeper(store repository.Store, auditor Auditor, notifier notify.Notifier, log logrus.FieldLogger) *ExpirySweeper {
	if auditor == nil {
		auditor = nopAuditor{}
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &ExpirySweeper{
		store:    store,
		auditor:  auditor,
		notifier: notifier,
		log:      log,
	}
}

// Run expires every ACTIVE card whose expiry date is before today and returns
// how many cards changed. A second run on the same day changes nothing.
func (s *ExpirySweeper) Run(ctx context.Context, today time.Time) (int, error) {
	day := model.DateOf(today)
	var expired []model.Card

	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		expired = expired[:0]
		due, err := tx.Cards().FindDueForExpiry(ctx, model.CardStatusActive, day)
		if err != nil {
			return err
		}

		ids := make([]uuid.UUID, 0, len(due))
		for i := range due {
			if err := s.lifecycle.Expire(&due[i], day); err != nil {
				s.log.WithError(err).WithField("card_id", due[i].ID).Warn("skipping card during expiry sweep")
				continue
			}
			ids = append(ids, due[i].ID)
			expired = append(expired, due[i])
		}
		if len(ids) == 0 {
			return nil
		}
		_, err = tx.Cards().UpdateStatusBatch(ctx, ids, model.CardStatusExpired)
		return err
	})
	if err != nil {
		return 0, err
	}

	owners := make(map[uuid.UUID]*model.User)
	for _, card := range expired {
		s.auditor.Record(ctx, cardEvent(model.CardEventExpired, card.ID, uuid.Nil))

		owner, ok := owners[card.OwnerID]
		if !ok {
			owner, err = s.store.Users().FindByID(ctx, card.OwnerID)
			if err != nil {
				s.log.WithError(err).WithField("card_id", card.ID).Warn("cannot notify card owner")
			}
			owners[card.OwnerID] = owner
		}
		if owner != nil {
			s.notifier.CardExpired(ctx, *owner, card)
		}
	}

	s.log.WithFields(logrus.Fields{"day": day.Format(time.DateOnly), "expired": len(expired)}).Info("expiry sweep finished")
	return len(expired), nil
}
