package repository

import (
	"context"

	"gorm.io/gorm"
)

type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a Store backed by a GORM connection.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Cards() CardRepository {
	return &cardRepository{db: s.db}
}

func (s *gormStore) Transactions() TransactionRepository {
	return &transactionRepository{db: s.db}
}

func (s *gormStore) Users() UserRepository {
	return &userRepository{db: s.db}
}

func (s *gormStore) CardEvents() CardEventRepository {
	return &cardEventRepository{db: s.db}
}

// WithTransaction executes fn within a database transaction.
func (s *gormStore) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &gormStore{db: tx})
	})
	return translateError(err, nil)
}
