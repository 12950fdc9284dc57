package service

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"cardvault/internal/cardnumber"
	"cardvault/internal/logging"
	"cardvault/internal/model"
	"cardvault/internal/repository"
)

type recordingAuditor struct {
	mu     sync.Mutex
	events []model.CardEvent
}

func (a *recordingAuditor) Record(_ context.Context, event model.CardEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
}

func (a *recordingAuditor) kinds() []model.CardEventKind {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]model.CardEventKind, 0, len(a.events))
	for _, e := range a.events {
		out = append(out, e.Kind)
	}
	return out
}

type recordingNotifier struct {
	mu      sync.Mutex
	blocked []uuid.UUID
	expired []uuid.UUID
}

func (n *recordingNotifier) CardBlocked(_ context.Context, _ model.User, card model.Card) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.blocked = append(n.blocked, card.ID)
}

func (n *recordingNotifier) CardExpired(_ context.Context, _ model.User, card model.Card) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.expired = append(n.expired, card.ID)
}

type testEnv struct {
	store     *repository.MemoryStore
	codec     *cardnumber.Codec
	auditor   *recordingAuditor
	notifier  *recordingNotifier
	cards     *cardService
	transfers *transferService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	keyring, err := cardnumber.NewKeyring(map[byte][]byte{1: bytes.Repeat([]byte{7}, cardnumber.KeySize)}, 1)
	require.NoError(t, err)

	env := &testEnv{
		store:    repository.NewMemoryStore(2 * time.Second),
		codec:    cardnumber.NewCodec(keyring),
		auditor:  &recordingAuditor{},
		notifier: &recordingNotifier{},
	}
	log := logging.Discard()
	env.cards = NewCardService(env.store, env.codec, env.auditor, env.notifier, log).(*cardService)
	env.transfers = NewTransferService(env.store, RetryPolicy{Attempts: 2, Base: time.Millisecond}, log).(*transferService)
	return env
}

func (e *testEnv) user(t *testing.T, role model.Role) *model.User {
	t.Helper()
	u := &model.User{
		Name:         "User",
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "x",
		Role:         role,
		IsActive:     true,
	}
	require.NoError(t, e.store.Users().Create(context.Background(), u))
	return u
}

// card stores a card directly so tests can pick any status and expiry.
func (e *testEnv) card(t *testing.T, owner uuid.UUID, balance int64, status model.CardStatus, expiry time.Time) *model.Card {
	t.Helper()
	number, err := e.codec.Generate()
	require.NoError(t, err)
	blob, err := e.codec.Encrypt(number)
	require.NoError(t, err)

	c := &model.Card{
		EncryptedNumber: blob,
		HolderName:      "CARD HOLDER",
		ExpiryDate:      model.DateOf(expiry),
		Status:          status,
		Balance:         decimal.NewFromInt(balance),
		OwnerID:         owner,
	}
	require.NoError(t, e.store.Cards().Create(context.Background(), c))
	return c
}

func (e *testEnv) balance(t *testing.T, id uuid.UUID) decimal.Decimal {
	t.Helper()
	c, err := e.store.Cards().FindByID(context.Background(), id)
	require.NoError(t, err)
	return c.Balance
}

func nextYear() time.Time {
	return time.Now().AddDate(1, 0, 0)
}
