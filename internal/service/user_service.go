package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"cardvault/internal/cache"
	apperrors "cardvault/internal/errors"
	"cardvault/internal/model"
	"cardvault/internal/repository"
)

const (
	bcryptCost   = 10
	userCacheTTL = 5 * time.Minute
)

// UserService manages user accounts.
type UserService interface {
	Create(ctx context.Context, name, email, password string, role model.Role) (*model.User, error)
	Get(ctx context.Context, id uuid.UUID) (*model.User, error)
	List(ctx context.Context, page model.Page) (*model.PageResult[model.User], error)
	Block(ctx context.Context, id uuid.UUID) (*model.User, error)
	Unblock(ctx context.Context, id uuid.UUID) (*model.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// SessionRevoker cuts off the access tokens a user already holds.
type SessionRevoker interface {
	RevokeUser(ctx context.Context, userID uuid.UUID) error
	RestoreUser(ctx context.Context, userID uuid.UUID) error
}

type userService struct {
	store    repository.Store
	cache    *cache.Client
	sessions SessionRevoker
	log      logrus.FieldLogger
}

// NewUserService builds a UserService. cache and sessions may be nil.
func NewUserService(store repository.Store, cache *cache.Client, sessions SessionRevoker, log logrus.FieldLogger) UserService {
	if sessions == nil {
		sessions = nopRevoker{}
	}
	return &userService{store: store, cache: cache, sessions: sessions, log: log}
}

func (s *userService) cacheKey(id uuid.UUID) string {
	return "user:" + id.String()
}

// Create registers an active user with a bcrypt password hash.
func (s *userService) Create(ctx context.Context, name, email, password string, role model.Role) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	taken, err := s.store.Users().ExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return nil, apperrors.ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if role == "" {
		role = model.RoleUser
	}

	user := &model.User{
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     true,
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"user_id": user.ID, "role": role}).Info("user created")
	return user, nil
}

// Get returns a user, served from cache when possible.
func (s *userService) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	if data, _ := s.cache.Get(ctx, s.cacheKey(id)); data != nil {
		var cached model.User
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
	}

	user, err := s.store.Users().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(user); err == nil {
		_ = s.cache.Set(ctx, s.cacheKey(id), payload, userCacheTTL)
	}
	return user, nil
}

func (s *userService) List(ctx context.Context, page model.Page) (*model.PageResult[model.User], error) {
	return s.store.Users().List(ctx, page)
}

// Block deactivates a user. Blocking a blocked user is a precondition failure.
func (s *userService) Block(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return s.setActive(ctx, id, false, apperrors.ErrUserAlreadyBlocked)
}

// Unblock reactivates a user. Unblocking an active user is a precondition failure.
func (s *userService) Unblock(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return s.setActive(ctx, id, true, apperrors.ErrUserAlreadyActive)
}

func (s *userService) setActive(ctx context.Context, id uuid.UUID, active bool, already error) (*model.User, error) {
	user, err := s.store.Users().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.IsActive == active {
		return nil, already
	}
	user.IsActive = active
	if err := s.store.Users().Update(ctx, user); err != nil {
		return nil, err
	}
	_ = s.cache.Delete(ctx, s.cacheKey(id))

	revoke := s.sessions.RevokeUser
	if active {
		revoke = s.sessions.RestoreUser
	}
	if err := revoke(ctx, id); err != nil {
		s.log.WithError(err).WithField("user_id", id).Warn("failed to update session revocation")
	}
	s.log.WithFields(logrus.Fields{"user_id": id, "active": active}).Info("user status changed")
	return user, nil
}

// Delete removes a user together with all of their cards.
func (s *userService) Delete(ctx context.Context, id uuid.UUID) error {
	var removed int64
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		if _, err := tx.Users().FindByID(ctx, id); err != nil {
			return err
		}
		n, err := tx.Cards().DeleteByOwner(ctx, id)
		if err != nil {
			return err
		}
		removed = n
		return tx.Users().Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	_ = s.cache.Delete(ctx, s.cacheKey(id))
	if err := s.sessions.RevokeUser(ctx, id); err != nil {
		s.log.WithError(err).WithField("user_id", id).Warn("failed to revoke sessions")
	}
	s.log.WithFields(logrus.Fields{"user_id": id, "cards_removed": removed}).Warn("user deleted")
	return nil
}

type nopRevoker struct{}

func (nopRevoker) RevokeUser(context.Context, uuid.UUID) error  { return nil }
func (nopRevoker) RestoreUser(context.Context, uuid.UUID) error { return nil }

// EnsureAdmin creates the admin account or resets its password, role and
// status. It reports whether a new user was created.
func EnsureAdmin(ctx context.Context, store repository.Store, name, email, password string) (*model.User, bool, error) {
	if password == "" {
		return nil, false, fmt.Errorf("admin password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, false, fmt.Errorf("hash password: %w", err)
	}
	email = strings.ToLower(strings.TrimSpace(email))

	existing, err := store.Users().FindByEmail(ctx, email)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		admin := &model.User{
			Name:         name,
			Email:        email,
			PasswordHash: string(hash),
			Role:         model.RoleAdmin,
			IsActive:     true,
		}
		if err := store.Users().Create(ctx, admin); err != nil {
			return nil, false, fmt.Errorf("create admin: %w", err)
		}
		return admin, true, nil
	case err != nil:
		return nil, false, fmt.Errorf("find admin: %w", err)
	}

	existing.Name = name
	existing.PasswordHash = string(hash)
	existing.Role = model.RoleAdmin
	existing.IsActive = true
	if err := store.Users().Update(ctx, existing); err != nil {
		return nil, false, fmt.Errorf("update admin: %w", err)
	}
	return existing, false, nil
}
