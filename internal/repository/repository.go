package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"cardvault/internal/model"
)

// CardRepository defines card persistence operations.
type CardRepository interface {
	Create(ctx context.Context, card *model.Card) error
	Save(ctx context.Context, card *model.Card) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Card, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error)
	Query(ctx context.Context, filter model.CardFilter, page model.Page) (*model.PageResult[model.Card], error)
	// FindDueForExpiry locks and returns cards in status whose expiry date is before the given day.
	FindDueForExpiry(ctx context.Context, status model.CardStatus, before time.Time) ([]model.Card, error)
	// LockForUpdate locks the given cards in ascending id order and returns those that exist.
	LockForUpdate(ctx context.Context, ids ...uuid.UUID) ([]model.Card, error)
	UpdateBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error
	UpdateStatusBatch(ctx context.Context, ids []uuid.UUID, status model.CardStatus) (int64, error)
}

// TransactionRepository defines ledger persistence operations.
type TransactionRepository interface {
	Create(ctx context.Context, tx *model.Transaction) error
	// FindByCardOwner returns transactions where userID owns either side, newest first.
	FindByCardOwner(ctx context.Context, userID uuid.UUID, page model.Page) (*model.PageResult[model.Transaction], error)
}

// UserRepository defines user persistence operations.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	Update(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, page model.Page) (*model.PageResult[model.User], error)
}

// CardEventRepository defines audit log persistence operations.
type CardEventRepository interface {
	Create(ctx context.Context, event *model.CardEvent) error
	CreateBatch(ctx context.Context, events []model.CardEvent) error
}

// Store groups the repositories that share one unit of work.
type Store interface {
	Cards() CardRepository
	Transactions() TransactionRepository
	Users() UserRepository
	CardEvents() CardEventRepository
	// WithTransaction runs fn atomically. Repositories obtained from the
	// Store passed to fn take part in the transaction.
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}
