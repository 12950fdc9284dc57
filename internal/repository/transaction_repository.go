package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"cardvault/internal/model"
)

type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a new transaction repository.
func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

// Create appends a transaction to the ledger.
func (r *transactionRepository) Create(ctx context.Context, tx *model.Transaction) error {
	return translateError(r.db.WithContext(ctx).Create(tx).Error, nil)
}

// FindByCardOwner returns transactions touching any card of userID.
func (r *transactionRepository) FindByCardOwner(ctx context.Context, userID uuid.UUID, page model.Page) (*model.PageResult[model.Transaction], error) {
	page = page.Normalize()
	scope := func(db *gorm.DB) *gorm.DB {
		return db.Where("from_owner_id = ? OR to_owner_id = ?", userID, userID)
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Transaction{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, translateError(err, nil)
	}

	var items []model.Transaction
	if err := r.db.WithContext(ctx).Scopes(scope).
		Order("created_at DESC").Order("id").
		Offset(page.Offset()).Limit(page.Size).
		Find(&items).Error; err != nil {
		return nil, translateError(err, nil)
	}

	return &model.PageResult[model.Transaction]{Items: items, Total: total, Page: page.Number, Size: page.Size}, nil
}
