package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "cardvault/internal/errors"
	"cardvault/internal/model"
)

// memoryData is one snapshot of all tables.
type memoryData struct {
	cards        map[uuid.UUID]model.Card
	users        map[uuid.UUID]model.User
	transactions []model.Transaction
	events       []model.CardEvent
}

func newMemoryData() *memoryData {
	return &memoryData{
		cards: make(map[uuid.UUID]model.Card),
		users: make(map[uuid.UUID]model.User),
	}
}

func (d *memoryData) clone() *memoryData {
	c := &memoryData{
		cards:        make(map[uuid.UUID]model.Card, len(d.cards)),
		users:        make(map[uuid.UUID]model.User, len(d.users)),
		transactions: append([]model.Transaction(nil), d.transactions...),
		events:       append([]model.CardEvent(nil), d.events...),
	}
	for k, v := range d.cards {
		c.cards[k] = v
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	return c
}

// memoryState is shared by a root store and the transactional views derived from it.
type memoryState struct {
	// sem is a one-slot write lock; a channel lets acquisition time out.
	sem         chan struct{}
	lockTimeout time.Duration
	data        *memoryData
}

func (st *memoryState) acquire(ctx context.Context) error {
	timer := time.NewTimer(st.lockTimeout)
	defer timer.Stop()
	select {
	case st.sem <- struct{}{}:
		return nil
	case <-timer.C:
		return fmt.Errorf("memory store lock wait exceeded %s: %w", st.lockTimeout, apperrors.ErrLockTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (st *memoryState) release() {
	<-st.sem
}

// MemoryStore is an in-process Store. A transaction holds the store-wide
// lock, works on a private copy and publishes it on commit, so readers never
// see partial writes.
type MemoryStore struct {
	state *memoryState
	// tx is the working copy when this store is a transactional view.
	tx *memoryData
}

// NewMemoryStore creates an empty in-memory store. lockTimeout bounds how long
// an operation waits for a concurrent transaction.
func NewMemoryStore(lockTimeout time.Duration) *MemoryStore {
	if lockTimeout <= 0 {
		lockTimeout = 5 * time.Second
	}
	return &MemoryStore{state: &memoryState{
		sem:         make(chan struct{}, 1),
		lockTimeout: lockTimeout,
		data:        newMemoryData(),
	}}
}

func (s *MemoryStore) Cards() CardRepository {
	return &memoryCardRepository{store: s}
}

func (s *MemoryStore) Transactions() TransactionRepository {
	return &memoryTransactionRepository{store: s}
}

func (s *MemoryStore) Users() UserRepository {
	return &memoryUserRepository{store: s}
}

func (s *MemoryStore) CardEvents() CardEventRepository {
	return &memoryCardEventRepository{store: s}
}

// WithTransaction runs fn against a private copy and commits it if fn succeeds.
func (s *MemoryStore) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	if s.tx != nil {
		return fn(ctx, s)
	}
	if err := s.state.acquire(ctx); err != nil {
		return err
	}
	defer s.state.release()

	working := s.state.data.clone()
	if err := fn(ctx, &MemoryStore{state: s.state, tx: working}); err != nil {
		return err
	}
	s.state.data = working
	return nil
}

// with runs fn on the transaction copy, or on live data under the lock.
func (s *MemoryStore) with(ctx context.Context, fn func(d *memoryData) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	if err := s.state.acquire(ctx); err != nil {
		return err
	}
	defer s.state.release()
	return fn(s.state.data)
}

func copyCard(c model.Card) model.Card {
	c.EncryptedNumber = append([]byte(nil), c.EncryptedNumber...)
	c.MaskedNumber = ""
	return c
}

func paginate[T any](items []T, page model.Page) *model.PageResult[T] {
	page = page.Normalize()
	result := &model.PageResult[T]{Items: []T{}, Total: int64(len(items)), Page: page.Number, Size: page.Size}
	start := page.Offset()
	if start >= len(items) {
		return result
	}
	end := start + page.Size
	if end > len(items) {
		end = len(items)
	}
	result.Items = append(result.Items, items[start:end]...)
	return result
}

type memoryCardRepository struct {
	store *MemoryStore
}

func (r *memoryCardRepository) Create(ctx context.Context, card *model.Card) error {
	return r.store.with(ctx, func(d *memoryData) error {
		if card.ID == uuid.Nil {
			card.ID = uuid.New()
		}
		if card.CreatedAt.IsZero() {
			card.CreatedAt = time.Now()
		}
		card.UpdatedAt = card.CreatedAt
		d.cards[card.ID] = copyCard(*card)
		return nil
	})
}

func (r *memoryCardRepository) Save(ctx context.Context, card *model.Card) error {
	return r.store.with(ctx, func(d *memoryData) error {
		if existing, ok := d.cards[card.ID]; ok {
			card.CreatedAt = existing.CreatedAt
		}
		card.UpdatedAt = time.Now()
		d.cards[card.ID] = copyCard(*card)
		return nil
	})
}

func (r *memoryCardRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Card, error) {
	var out *model.Card
	err := r.store.with(ctx, func(d *memoryData) error {
		c, ok := d.cards[id]
		if !ok {
			return apperrors.ErrCardNotFound
		}
		cp := copyCard(c)
		out = &cp
		return nil
	})
	return out, err
}

func (r *memoryCardRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var ok bool
	err := r.store.with(ctx, func(d *memoryData) error {
		_, ok = d.cards[id]
		return nil
	})
	return ok, err
}

func (r *memoryCardRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.store.with(ctx, func(d *memoryData) error {
		if _, ok := d.cards[id]; !ok {
			return apperrors.ErrCardNotFound
		}
		delete(d.cards, id)
		return nil
	})
}

func (r *memoryCardRepository) DeleteByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	var n int64
	err := r.store.with(ctx, func(d *memoryData) error {
		for id, c := range d.cards {
			if c.OwnerID == ownerID {
				delete(d.cards, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *memoryCardRepository) Query(ctx context.Context, filter model.CardFilter, page model.Page) (*model.PageResult[model.Card], error) {
	var matched []model.Card
	err := r.store.with(ctx, func(d *memoryData) error {
		for _, c := range d.cards {
			if filter.Matches(&c) {
				matched = append(matched, copyCard(c))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})
	return paginate(matched, page), nil
}

func (r *memoryCardRepository) FindDueForExpiry(ctx context.Context, status model.CardStatus, before time.Time) ([]model.Card, error) {
	var due []model.Card
	err := r.store.with(ctx, func(d *memoryData) error {
		for _, c := range d.cards {
			if c.Status == status && c.ExpiredOn(before) {
				due = append(due, copyCard(c))
			}
		}
		return nil
	})
	sort.Slice(due, func(i, j int) bool { return due[i].ID.String() < due[j].ID.String() })
	return due, err
}

func (r *memoryCardRepository) LockForUpdate(ctx context.Context, ids ...uuid.UUID) ([]model.Card, error) {
	var cards []model.Card
	err := r.store.with(ctx, func(d *memoryData) error {
		for _, id := range sortedIDs(ids) {
			if c, ok := d.cards[uuid.MustParse(id)]; ok {
				cards = append(cards, copyCard(c))
			}
		}
		return nil
	})
	return cards, err
}

func (r *memoryCardRepository) UpdateBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error {
	if balance.IsNegative() {
		return apperrors.ErrNegativeBalance
	}
	return r.store.with(ctx, func(d *memoryData) error {
		c, ok := d.cards[id]
		if !ok {
			return apperrors.ErrCardNotFound
		}
		c.Balance = balance
		c.UpdatedAt = time.Now()
		d.cards[id] = c
		return nil
	})
}

func (r *memoryCardRepository) UpdateStatusBatch(ctx context.Context, ids []uuid.UUID, status model.CardStatus) (int64, error) {
	var n int64
	err := r.store.with(ctx, func(d *memoryData) error {
		for _, id := range ids {
			c, ok := d.cards[id]
			if !ok {
				continue
			}
			c.Status = status
			c.UpdatedAt = time.Now()
			d.cards[id] = c
			n++
		}
		return nil
	})
	return n, err
}

type memoryTransactionRepository struct {
	store *MemoryStore
}

func (r *memoryTransactionRepository) Create(ctx context.Context, tx *model.Transaction) error {
	return r.store.with(ctx, func(d *memoryData) error {
		if tx.ID == uuid.Nil {
			tx.ID = uuid.New()
		}
		if tx.CreatedAt.IsZero() {
			tx.CreatedAt = time.Now()
		}
		d.transactions = append(d.transactions, *tx)
		return nil
	})
}

func (r *memoryTransactionRepository) FindByCardOwner(ctx context.Context, userID uuid.UUID, page model.Page) (*model.PageResult[model.Transaction], error) {
	var matched []model.Transaction
	err := r.store.with(ctx, func(d *memoryData) error {
		for i := len(d.transactions) - 1; i >= 0; i-- {
			t := d.transactions[i]
			if t.FromOwnerID == userID || t.ToOwnerID == userID {
				matched = append(matched, t)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paginate(matched, page), nil
}

type memoryUserRepository struct {
	store *MemoryStore
}

func (r *memoryUserRepository) emailTaken(d *memoryData, email string, except uuid.UUID) bool {
	for _, u := range d.users {
		if u.ID != except && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

func (r *memoryUserRepository) Create(ctx context.Context, user *model.User) error {
	return r.store.with(ctx, func(d *memoryData) error {
		if r.emailTaken(d, user.Email, uuid.Nil) {
			return apperrors.ErrEmailTaken
		}
		if user.ID == uuid.Nil {
			user.ID = uuid.New()
		}
		now := time.Now()
		if user.CreatedAt.IsZero() {
			user.CreatedAt = now
		}
		user.UpdatedAt = now
		d.users[user.ID] = *user
		return nil
	})
}

func (r *memoryUserRepository) Update(ctx context.Context, user *model.User) error {
	return r.store.with(ctx, func(d *memoryData) error {
		if _, ok := d.users[user.ID]; !ok {
			return apperrors.ErrUserNotFound
		}
		if r.emailTaken(d, user.Email, user.ID) {
			return apperrors.ErrEmailTaken
		}
		user.UpdatedAt = time.Now()
		d.users[user.ID] = *user
		return nil
	})
}

func (r *memoryUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var out *model.User
	err := r.store.with(ctx, func(d *memoryData) error {
		u, ok := d.users[id]
		if !ok {
			return apperrors.ErrUserNotFound
		}
		out = &u
		return nil
	})
	return out, err
}

func (r *memoryUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var out *model.User
	err := r.store.with(ctx, func(d *memoryData) error {
		for _, u := range d.users {
			if strings.EqualFold(u.Email, email) {
				found := u
				out = &found
				return nil
			}
		}
		return apperrors.ErrUserNotFound
	})
	return out, err
}

func (r *memoryUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var taken bool
	err := r.store.with(ctx, func(d *memoryData) error {
		taken = r.emailTaken(d, email, uuid.Nil)
		return nil
	})
	return taken, err
}

func (r *memoryUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.store.with(ctx, func(d *memoryData) error {
		if _, ok := d.users[id]; !ok {
			return apperrors.ErrUserNotFound
		}
		delete(d.users, id)
		return nil
	})
}

func (r *memoryUserRepository) List(ctx context.Context, page model.Page) (*model.PageResult[model.User], error) {
	var users []model.User
	err := r.store.with(ctx, func(d *memoryData) error {
		for _, u := range d.users {
			users = append(users, u)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.Before(users[j].CreatedAt)
		}
		return users[i].ID.String() < users[j].ID.String()
	})
	return paginate(users, page), nil
}

type memoryCardEventRepository struct {
	store *MemoryStore
}

func (r *memoryCardEventRepository) Create(ctx context.Context, event *model.CardEvent) error {
	return r.CreateBatch(ctx, []model.CardEvent{*event})
}

func (r *memoryCardEventRepository) CreateBatch(ctx context.Context, events []model.CardEvent) error {
	return r.store.with(ctx, func(d *memoryData) error {
		for _, e := range events {
			if e.ID == uuid.Nil {
				e.ID = uuid.New()
			}
			if e.CreatedAt.IsZero() {
				e.CreatedAt = time.Now()
			}
			d.events = append(d.events, e)
		}
		return nil
	})
}

// RecordedEvents returns a copy of the recorded audit events.
func (s *MemoryStore) RecordedEvents(ctx context.Context) ([]model.CardEvent, error) {
	var out []model.CardEvent
	err := s.with(ctx, func(d *memoryData) error {
		out = append(out, d.events...)
		return nil
	})
	return out, err
}

var _ Store = (*MemoryStore)(nil)
