package repository

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "cardvault/internal/errors"
	"cardvault/internal/model"
)

type cardRepository struct {
	db *gorm.DB
}

// NewCardRepository creates a new card repository.
func NewCardRepository(db *gorm.DB) CardRepository {
	return &cardRepository{db: db}
}

// Create creates a new card.
func (r *cardRepository) Create(ctx context.Context, card *model.Card) error {
	return translateError(r.db.WithContext(ctx).Create(card).Error, nil)
}

// Save updates an existing card.
func (r *cardRepository) Save(ctx context.Context, card *model.Card) error {
	return translateError(r.db.WithContext(ctx).Save(card).Error, nil)
}

// FindByID finds a card by ID.
func (r *cardRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Card, error) {
	var card model.Card
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&card).Error; err != nil {
		return nil, translateError(err, apperrors.ErrCardNotFound)
	}
	return &card, nil
}

// Exists reports whether a card with id exists.
func (r *cardRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Card{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, translateError(err, nil)
	}
	return count > 0, nil
}

// Delete removes a card. Missing cards yield ErrCardNotFound.
func (r *cardRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Card{})
	if res.Error != nil {
		return translateError(res.Error, nil)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrCardNotFound
	}
	return nil
}

// DeleteByOwner removes every card of an owner.
func (r *cardRepository) DeleteByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Delete(&model.Card{})
	return res.RowsAffected, translateError(res.Error, nil)
}

// Query returns one page of cards matching filter.
func (r *cardRepository) Query(ctx context.Context, filter model.CardFilter, page model.Page) (*model.PageResult[model.Card], error) {
	page = page.Normalize()

	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Card{}).Scopes(cardFilterScope(filter)).Count(&total).Error; err != nil {
		return nil, translateError(err, nil)
	}

	var cards []model.Card
	if err := r.db.WithContext(ctx).Scopes(cardFilterScope(filter)).
		Order("created_at DESC").Order("id").
		Offset(page.Offset()).Limit(page.Size).
		Find(&cards).Error; err != nil {
		return nil, translateError(err, nil)
	}

	return &model.PageResult[model.Card]{Items: cards, Total: total, Page: page.Number, Size: page.Size}, nil
}

// FindDueForExpiry locks cards with status whose expiry date is before the given day.
func (r *cardRepository) FindDueForExpiry(ctx context.Context, status model.CardStatus, before time.Time) ([]model.Card, error) {
	var cards []model.Card
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("status = ? AND expiry_date < ?", status, model.DateOf(before)).
		Order("id").
		Find(&cards).Error
	if err != nil {
		return nil, translateError(err, nil)
	}
	return cards, nil
}

// LockForUpdate locks the cards with a single ordered SELECT ... FOR UPDATE.
func (r *cardRepository) LockForUpdate(ctx context.Context, ids ...uuid.UUID) ([]model.Card, error) {
	ordered := sortedIDs(ids)
	var cards []model.Card
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ordered).
		Order("id").
		Find(&cards).Error
	if err != nil {
		return nil, translateError(err, nil)
	}
	return cards, nil
}

// UpdateBalance updates the balance of a card.
func (r *cardRepository) UpdateBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error {
	if balance.IsNegative() {
		return apperrors.ErrNegativeBalance
	}
	res := r.db.WithContext(ctx).Model(&model.Card{}).
		Where("id = ?", id).
		Update("balance", balance)
	if res.Error != nil {
		return translateError(res.Error, nil)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrCardNotFound
	}
	return nil
}

// UpdateStatusBatch sets status on every listed card in one statement.
func (r *cardRepository) UpdateStatusBatch(ctx context.Context, ids []uuid.UUID, status model.CardStatus) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Model(&model.Card{}).
		Where("id IN ?", ids).
		Update("status", status)
	return res.RowsAffected, translateError(res.Error, nil)
}

func cardFilterScope(f model.CardFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if f.OwnerID != nil {
			db = db.Where("owner_id = ?", *f.OwnerID)
		}
		if f.Status != nil {
			db = db.Where("status = ?", *f.Status)
		}
		if f.MinBalance != nil {
			db = db.Where("balance >= ?", *f.MinBalance)
		}
		if f.MaxBalance != nil {
			db = db.Where("balance <= ?", *f.MaxBalance)
		}
		if f.ExpiryFrom != nil {
			db = db.Where("expiry_date >= ?", model.DateOf(*f.ExpiryFrom))
		}
		if f.ExpiryTo != nil {
			db = db.Where("expiry_date <= ?", model.DateOf(*f.ExpiryTo))
		}
		if f.HolderName != "" {
			db = db.Where("LOWER(holder_name) LIKE ?", "%"+escapeLike(strings.ToLower(f.HolderName))+"%")
		}
		return db
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// sortedIDs returns ids deduplicated and in the order MySQL stores char(36) keys.
func sortedIDs(ids []uuid.UUID) []string {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id.String())
	}
	sort.Strings(out)
	return out
}
