package repository

import (
	"context"

	"gorm.io/gorm"

	"cardvault/internal/model"
)

type cardEventRepository struct {
	db *gorm.DB
}

// NewCardEventRepository creates a new card event repository.
func NewCardEventRepository(db *gorm.DB) CardEventRepository {
	return &cardEventRepository{db: db}
}

// Create creates a new card event.
func (r *cardEventRepository) Create(ctx context.Context, event *model.CardEvent) error {
	return translateError(r.db.WithContext(ctx).Create(event).Error, nil)
}

// CreateBatch creates multiple card events in a single statement batch.
func (r *cardEventRepository) CreateBatch(ctx context.Context, events []model.CardEvent) error {
	if len(events) == 0 {
		return nil
	}
	return translateError(r.db.WithContext(ctx).CreateInBatches(events, 100).Error, nil)
}
