package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	apperrors "cardvault/internal/errors"
	"cardvault/internal/model"
)

func TestCardLifecycle_Block(t *testing.T) {
	tests := []struct {
		from    model.CardStatus
		changed bool
		want    model.CardStatus
		err     error
	}{
		{model.CardStatusActive, true, model.CardStatusBlocked, nil},
		{model.CardStatusBlocked, false, model.CardStatusBlocked, nil},
		{model.CardStatusExpired, false, model.CardStatusExpired, apperrors.ErrInvalidTransition},
	}
	for _, tt := range tests {
		t.Run(string(tt.from), func(t *testing.T) {
			card := &model.Card{Status: tt.from}
			changed, err := CardLifecycle{}.Block(card)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.changed, changed)
			assert.Equal(t, tt.want, card.Status)
		})
	}
}

func TestCardLifecycle_Activate(t *testing.T) {
	for _, from := range []model.CardStatus{model.CardStatusActive, model.CardStatusBlocked, model.CardStatusExpired} {
		t.Run(string(from), func(t *testing.T) {
			card := &model.Card{Status: from}
			assert.Equal(t, from != model.CardStatusActive, CardLifecycle{}.Activate(card))
			assert.Equal(t, model.CardStatusActive, card.Status)
		})
	}
}

func TestCardLifecycle_Expire(t *testing.T) {
	today := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)

	tests := []struct {
		name    string
		status  model.CardStatus
		expiry  time.Time
		wantErr bool
	}{
		{"active and past expiry", model.CardStatusActive, yesterday, false},
		{"expires today is still valid", model.CardStatusActive, today, true},
		{"blocked cards stay blocked", model.CardStatusBlocked, yesterday, true},
		{"already expired", model.CardStatusExpired, yesterday, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card := &model.Card{Status: tt.status, ExpiryDate: tt.expiry}
			err := CardLifecycle{}.Expire(card, today)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
				assert.Equal(t, tt.status, card.Status)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, model.CardStatusExpired, card.Status)
		})
	}
}

func TestCardLifecycle_CheckUsable(t *testing.T) {
	today := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		card   model.Card
		expect error
	}{
		{"active", model.Card{Status: model.CardStatusActive, ExpiryDate: today}, nil},
		{"blocked", model.Card{Status: model.CardStatusBlocked, ExpiryDate: today}, apperrors.ErrCardBlocked},
		{"expired status", model.Card{Status: model.CardStatusExpired, ExpiryDate: today.AddDate(1, 0, 0)}, apperrors.ErrCardExpired},
		{"active but past date", model.Card{Status: model.CardStatusActive, ExpiryDate: today.AddDate(0, 0, -1)}, apperrors.ErrCardExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CardLifecycle{}.CheckUsable(&tt.card, today)
			if tt.expect == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.expect)
			}
		})
	}
}

func TestAccessPolicy(t *testing.T) {
	owner := &model.User{ID: uuid.New(), Role: model.RoleUser}
	stranger := &model.User{ID: uuid.New(), Role: model.RoleUser}
	admin := &model.User{ID: uuid.New(), Role: model.RoleAdmin}
	card := &model.Card{OwnerID: owner.ID}
	policy := AccessPolicy{}

	assert.True(t, policy.CanBlock(owner, card))
	assert.True(t, policy.CanBlock(admin, card))
	assert.False(t, policy.CanBlock(stranger, card))
	assert.ErrorIs(t, policy.RequireBlock(stranger, card), apperrors.ErrAccessDenied)

	assert.True(t, policy.CanManage(admin))
	assert.False(t, policy.CanManage(owner))
	assert.NoError(t, policy.RequireManage(admin))
	assert.ErrorIs(t, policy.RequireManage(owner), apperrors.ErrAccessDenied)
}
