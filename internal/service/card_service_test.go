package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "cardvault/internal/errors"
	"cardvault/internal/model"
)

func TestCardService_Create(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.user(t, model.RoleAdmin)
	owner := env.user(t, model.RoleUser)

	card, err := env.cards.Create(ctx, admin.ID, owner.ID, "  JANE DOE ", nextYear())
	require.NoError(t, err)

	assert.Equal(t, model.CardStatusActive, card.Status)
	assert.True(t, card.Balance.IsZero())
	assert.Equal(t, "JANE DOE", card.HolderName)
	assert.Regexp(t, `^\*{4} \*{4} \*{4} \d{4}$`, card.MaskedNumber)

	stored, err := env.store.Cards().FindByID(ctx, card.ID)
	require.NoError(t, err)
	number, err := env.codec.Decrypt(stored.EncryptedNumber)
	require.NoError(t, err)
	assert.Len(t, number, 16)
	assert.NotContains(t, string(stored.EncryptedNumber), number)
	assert.Equal(t, []model.CardEventKind{model.CardEventCreated}, env.auditor.kinds())
}

func TestCardService_CreateValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.user(t, model.RoleAdmin)

	_, err := env.cards.Create(ctx, admin.ID, uuid.New(), "X", nextYear())
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)

	_, err = env.cards.Create(ctx, admin.ID, admin.ID, "X", time.Now().AddDate(0, 0, -2))
	assert.ErrorIs(t, err, apperrors.ErrInvalidExpiry)

	_, err = env.cards.Create(ctx, admin.ID, admin.ID, "X", time.Now())
	assert.NoError(t, err, "a card expiring today is still valid")
}

func TestCardService_FindOwnedBy(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.user(t, model.RoleUser)
	other := env.user(t, model.RoleUser)
	card := env.card(t, owner.ID, 10, model.CardStatusActive, nextYear())

	got, err := env.cards.FindOwnedBy(ctx, card.ID, owner.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, got.MaskedNumber)

	_, err = env.cards.FindOwnedBy(ctx, card.ID, other.ID)
	assert.ErrorIs(t, err, apperrors.ErrCardNotFound)

	_, err = env.cards.FindOwnedBy(ctx, uuid.New(), owner.ID)
	assert.ErrorIs(t, err, apperrors.ErrCardNotFound)
}

func TestCardService_RevealFailsOnCorruptBlob(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.user(t, model.RoleUser)
	card := env.card(t, owner.ID, 0, model.CardStatusActive, nextYear())

	card.EncryptedNumber = []byte("garbage")
	require.NoError(t, env.store.Cards().Save(ctx, card))

	_, err := env.cards.FindByID(ctx, card.ID)
	assert.ErrorIs(t, err, apperrors.ErrEncoding)
}

func TestCardService_Block(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.user(t, model.RoleUser)
	stranger := env.user(t, model.RoleUser)
	admin := env.user(t, model.RoleAdmin)

	t.Run("owner blocks own card", func(t *testing.T) {
		card := env.card(t, owner.ID, 0, model.CardStatusActive, nextYear())
		got, err := env.cards.Block(ctx, owner.ID, card.ID)
		require.NoError(t, err)
		assert.Equal(t, model.CardStatusBlocked, got.Status)
	})

	t.Run("stranger is denied", func(t *testing.T) {
		card := env.card(t, owner.ID, 0, model.CardStatusActive, nextYear())
		_, err := env.cards.Block(ctx, stranger.ID, card.ID)
		assert.ErrorIs(t, err, apperrors.ErrAccessDenied)

		stored, err := env.store.Cards().FindByID(ctx, card.ID)
		require.NoError(t, err)
		assert.Equal(t, model.CardStatusActive, stored.Status)
	})

	t.Run("admin block notifies owner", func(t *testing.T) {
		card := env.card(t, owner.ID, 0, model.CardStatusActive, nextYear())
		_, err := env.cards.Block(ctx, admin.ID, card.ID)
		require.NoError(t, err)
		assert.Contains(t, env.notifier.blocked, card.ID)
	})

	t.Run("blocking twice is a no-op", func(t *testing.T) {
		card := env.card(t, owner.ID, 0, model.CardStatusBlocked, nextYear())
		before := len(env.auditor.kinds())
		got, err := env.cards.Block(ctx, owner.ID, card.ID)
		require.NoError(t, err)
		assert.Equal(t, model.CardStatusBlocked, got.Status)
		assert.Len(t, env.auditor.kinds(), before)
	})

	t.Run("expired card cannot be blocked", func(t *testing.T) {
		card := env.card(t, owner.ID, 0, model.CardStatusExpired, nextYear())
		_, err := env.cards.Block(ctx, owner.ID, card.ID)
		assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	})

	t.Run("missing card", func(t *testing.T) {
		_, err := env.cards.Block(ctx, owner.ID, uuid.New())
		assert.ErrorIs(t, err, apperrors.ErrCardNotFound)
	})
}

func TestCardService_Activate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.user(t, model.RoleAdmin)
	owner := env.user(t, model.RoleUser)

	for _, status := range []model.CardStatus{model.CardStatusBlocked, model.CardStatusExpired} {
		card := env.card(t, owner.ID, 0, status, nextYear())
		got, err := env.cards.Activate(ctx, admin.ID, card.ID)
		require.NoError(t, err)
		assert.Equal(t, model.CardStatusActive, got.Status)
	}
	assert.Equal(t, []model.CardEventKind{model.CardEventActivated, model.CardEventActivated}, env.auditor.kinds())

	_, err := env.cards.Activate(ctx, admin.ID, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrCardNotFound)
}

func TestCardService_Delete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.user(t, model.RoleAdmin)
	owner := env.user(t, model.RoleUser)
	card := env.card(t, owner.ID, 500, model.CardStatusActive, nextYear())

	require.NoError(t, env.cards.Delete(ctx, admin.ID, card.ID))
	_, err := env.store.Cards().FindByID(ctx, card.ID)
	assert.ErrorIs(t, err, apperrors.ErrCardNotFound)

	assert.ErrorIs(t, env.cards.Delete(ctx, admin.ID, card.ID), apperrors.ErrCardNotFound)
	assert.Equal(t, []model.CardEventKind{model.CardEventDeleted}, env.auditor.kinds())
}

func TestCardService_SetBalance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.user(t, model.RoleAdmin)
	owner := env.user(t, model.RoleUser)
	card := env.card(t, owner.ID, 10, model.CardStatusActive, nextYear())

	got, err := env.cards.SetBalance(ctx, admin.ID, card.ID, decimal.RequireFromString("250.50"))
	require.NoError(t, err)
	assert.Equal(t, "250.50", got.Balance.StringFixed(2))
	assert.Equal(t, "250.50", env.balance(t, card.ID).StringFixed(2))

	_, err = env.cards.SetBalance(ctx, admin.ID, card.ID, decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, apperrors.ErrNegativeBalance)

	for _, raw := range []string{"0.004", "0.005", "10.001"} {
		_, err = env.cards.SetBalance(ctx, admin.ID, card.ID, decimal.RequireFromString(raw))
		assert.ErrorIs(t, err, apperrors.ErrInvalidAmount, raw)
	}
	assert.Equal(t, "250.50", env.balance(t, card.ID).StringFixed(2))

	_, err = env.cards.SetBalance(ctx, admin.ID, uuid.New(), decimal.NewFromInt(1))
	assert.ErrorIs(t, err, apperrors.ErrCardNotFound)

	require.Len(t, env.auditor.events, 1)
	event := env.auditor.events[0]
	assert.Equal(t, model.CardEventBalanceSet, event.Kind)
	assert.Equal(t, "10", event.OldBalance.Decimal.String())
	assert.Equal(t, "250.5", event.NewBalance.Decimal.String())

	ledger, err := env.store.Transactions().FindByCardOwner(ctx, owner.ID, model.Page{})
	require.NoError(t, err)
	assert.Zero(t, ledger.Total, "balance overwrites never enter the ledger")
}

func TestCardService_ListFiltered(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.user(t, model.RoleAdmin)
	alice := env.user(t, model.RoleUser)
	bob := env.user(t, model.RoleUser)

	env.card(t, alice.ID, 100, model.CardStatusActive, nextYear())
	env.card(t, alice.ID, 5, model.CardStatusBlocked, nextYear())
	env.card(t, bob.ID, 100, model.CardStatusActive, nextYear())

	t.Run("users only see their own cards", func(t *testing.T) {
		bobID := bob.ID
		page, err := env.cards.ListFiltered(ctx, alice.ID, model.RoleUser, model.CardFilter{OwnerID: &bobID}, model.Page{})
		require.NoError(t, err)
		assert.EqualValues(t, 2, page.Total)
		for _, c := range page.Items {
			assert.Equal(t, alice.ID, c.OwnerID)
			assert.NotEmpty(t, c.MaskedNumber)
		}
	})

	t.Run("admin sees everything", func(t *testing.T) {
		page, err := env.cards.ListFiltered(ctx, admin.ID, model.RoleAdmin, model.CardFilter{}, model.Page{})
		require.NoError(t, err)
		assert.EqualValues(t, 3, page.Total)
	})

	t.Run("status and balance filter", func(t *testing.T) {
		active := model.CardStatusActive
		low := decimal.NewFromInt(50)
		page, err := env.cards.ListFiltered(ctx, admin.ID, model.RoleAdmin, model.CardFilter{Status: &active, MinBalance: &low}, model.Page{Size: 1})
		require.NoError(t, err)
		assert.EqualValues(t, 2, page.Total)
		assert.Len(t, page.Items, 1)
	})

	t.Run("unknown requester", func(t *testing.T) {
		_, err := env.cards.ListFiltered(ctx, uuid.New(), model.RoleUser, model.CardFilter{}, model.Page{})
		assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
	})
}
