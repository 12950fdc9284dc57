package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "cardvault/internal/errors"
	"cardvault/internal/model"
)

func seedCard(t *testing.T, store Store, owner uuid.UUID, balance int64, status model.CardStatus, expiry time.Time) *model.Card {
	t.Helper()
	card := &model.Card{
		EncryptedNumber: []byte{1, 2, 3},
		HolderName:      "Holder " + owner.String()[:4],
		ExpiryDate:      expiry,
		Status:          status,
		Balance:         decimal.NewFromInt(balance),
		OwnerID:         owner,
	}
	require.NoError(t, store.Cards().Create(context.Background(), card))
	return card
}

func TestMemoryStore_TransactionCommitAndRollback(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Second)
	card := seedCard(t, store, uuid.New(), 100, model.CardStatusActive, time.Now().AddDate(1, 0, 0))

	err := store.WithTransaction(ctx, func(ctx context.Context, tx Store) error {
		return tx.Cards().UpdateBalance(ctx, card.ID, decimal.NewFromInt(40))
	})
	require.NoError(t, err)

	got, err := store.Cards().FindByID(ctx, card.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(40).Equal(got.Balance))

	boom := errors.New("boom")
	err = store.WithTransaction(ctx, func(ctx context.Context, tx Store) error {
		require.NoError(t, tx.Cards().UpdateBalance(ctx, card.ID, decimal.NewFromInt(0)))
		require.NoError(t, tx.Transactions().Create(ctx, &model.Transaction{FromCardID: card.ID, ToCardID: card.ID}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err = store.Cards().FindByID(ctx, card.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(40).Equal(got.Balance), "rolled back balance must be unchanged")

	page, err := store.Transactions().FindByCardOwner(ctx, card.OwnerID, model.Page{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestMemoryStore_LockTimeout(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(20 * time.Millisecond)

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- store.WithTransaction(ctx, func(ctx context.Context, tx Store) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	err := store.WithTransaction(ctx, func(ctx context.Context, tx Store) error { return nil })
	assert.ErrorIs(t, err, apperrors.ErrLockTimeout)

	_, err = store.Cards().Exists(ctx, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrLockTimeout)

	close(release)
	require.NoError(t, <-done)
}

func TestMemoryStore_CardQuery(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Second)
	alice := uuid.New()
	bob := uuid.New()
	expiry := time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		seedCard(t, store, alice, int64(i*100), model.CardStatusActive, expiry)
	}
	seedCard(t, store, bob, 1000, model.CardStatusBlocked, expiry)

	page, err := store.Cards().Query(ctx, model.CardFilter{OwnerID: &alice}, model.Page{Number: 0, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.Total)
	assert.Len(t, page.Items, 2)

	last, err := store.Cards().Query(ctx, model.CardFilter{OwnerID: &alice}, model.Page{Number: 2, Size: 2})
	require.NoError(t, err)
	assert.Len(t, last.Items, 1)

	low := decimal.NewFromInt(200)
	filtered, err := store.Cards().Query(ctx, model.CardFilter{OwnerID: &alice, MinBalance: &low}, model.Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), filtered.Total)

	blocked := model.CardStatusBlocked
	all, err := store.Cards().Query(ctx, model.CardFilter{Status: &blocked}, model.Page{})
	require.NoError(t, err)
	require.Len(t, all.Items, 1)
	assert.Equal(t, bob, all.Items[0].OwnerID)
}

func TestMemoryStore_FindDueForExpiryAndBatchUpdate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Second)
	today := time.Date(2026, time.May, 10, 0, 0, 0, 0, time.UTC)
	owner := uuid.New()

	due := seedCard(t, store, owner, 0, model.CardStatusActive, today.AddDate(0, 0, -1))
	seedCard(t, store, owner, 0, model.CardStatusActive, today)
	seedCard(t, store, owner, 0, model.CardStatusBlocked, today.AddDate(0, 0, -5))

	cards, err := store.Cards().FindDueForExpiry(ctx, model.CardStatusActive, today)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, due.ID, cards[0].ID)

	n, err := store.Cards().UpdateStatusBatch(ctx, []uuid.UUID{due.ID}, model.CardStatusExpired)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := store.Cards().FindByID(ctx, due.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CardStatusExpired, got.Status)
}

func TestMemoryStore_LockForUpdateOrdersAndSkipsMissing(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Second)
	owner := uuid.New()
	a := seedCard(t, store, owner, 1, model.CardStatusActive, time.Now())
	b := seedCard(t, store, owner, 2, model.CardStatusActive, time.Now())

	cards, err := store.Cards().LockForUpdate(ctx, b.ID, uuid.New(), a.ID, b.ID)
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.True(t, cards[0].ID.String() < cards[1].ID.String())
}

func TestMemoryStore_UpdateBalanceRejectsNegative(t *testing.T) {
	store := NewMemoryStore(time.Second)
	card := seedCard(t, store, uuid.New(), 10, model.CardStatusActive, time.Now())

	err := store.Cards().UpdateBalance(context.Background(), card.ID, decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, apperrors.ErrNegativeBalance)
}

func TestMemoryStore_Users(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Second)

	user := &model.User{Email: "a@example.com", Name: "A", Role: model.RoleUser, IsActive: true}
	require.NoError(t, store.Users().Create(ctx, user))
	assert.NotEqual(t, uuid.Nil, user.ID)

	err := store.Users().Create(ctx, &model.User{Email: "A@example.com", Name: "dup"})
	assert.ErrorIs(t, err, apperrors.ErrEmailTaken)

	exists, err := store.Users().ExistsByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	found, err := store.Users().FindByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	require.NoError(t, store.Users().Delete(ctx, user.ID))
	_, err = store.Users().FindByID(ctx, user.ID)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
	assert.ErrorIs(t, store.Users().Delete(ctx, user.ID), apperrors.ErrUserNotFound)
}

func TestMemoryStore_CardEvents(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Second)

	err := store.CardEvents().CreateBatch(ctx, []model.CardEvent{
		{CardID: uuid.New(), Kind: model.CardEventBlocked},
		{CardID: uuid.New(), Kind: model.CardEventDeleted},
	})
	require.NoError(t, err)

	events, err := store.RecordedEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.NotEqual(t, uuid.Nil, events[0].ID)
	assert.False(t, events[1].CreatedAt.IsZero())
}
