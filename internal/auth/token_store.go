package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cardvault/internal/cache"
	"cardvault/internal/model"
)

const (
	refreshTokenKeyPrefix = "refresh_token:"
	accessTokenKeyPrefix  = "blacklist:access_token:"
	revokedUserKeyPrefix  = "blacklist:user:"
)

// ErrSessionNotFound is returned when a refresh token is unknown, revoked or expired.
var ErrSessionNotFound = errors.New("refresh session not found")

// Session is what the store keeps for an issued refresh token.
type Session struct {
	UserID uuid.UUID  `json:"user_id"`
	Role   model.Role `json:"role"`
}

// TokenStoreInterface defines the interface for token storage operations.
type TokenStoreInterface interface {
	StoreRefreshToken(ctx context.Context, tokenID string, session Session, ttl time.Duration) error
	GetRefreshToken(ctx context.Context, tokenID string) (*Session, error)
	DeleteRefreshToken(ctx context.Context, tokenID string) error
	BlacklistAccessToken(ctx context.Context, tokenID string, ttl time.Duration) error
	IsAccessTokenBlacklisted(ctx context.Context, tokenID string) (bool, error)
	RevokeUser(ctx context.Context, userID uuid.UUID) error
	RestoreUser(ctx context.Context, userID uuid.UUID) error
	IsUserRevoked(ctx context.Context, userID uuid.UUID) (bool, error)
}

// TokenStore handles storage and retrieval of tokens in Redis.
type TokenStore struct {
	cache *cache.Client
}

var _ TokenStoreInterface = (*TokenStore)(nil)

// NewTokenStore creates a new token store.
func NewTokenStore(cache *cache.Client) *TokenStore {
	return &TokenStore{cache: cache}
}

// StoreRefreshToken records the session behind a refresh token until it expires.
func (s *TokenStore) StoreRefreshToken(ctx context.Context, tokenID string, session Session, ttl time.Duration) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return s.cache.Set(ctx, refreshTokenKeyPrefix+tokenID, payload, ttl)
}

// GetRefreshToken returns the session of a live refresh token.
func (s *TokenStore) GetRefreshToken(ctx context.Context, tokenID string) (*Session, error) {
	data, err := s.cache.Get(ctx, refreshTokenKeyPrefix+tokenID)
	if err != nil || data == nil {
		return nil, ErrSessionNotFound
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	if session.UserID == uuid.Nil {
		return nil, ErrSessionNotFound
	}
	return &session, nil
}

// DeleteRefreshToken removes a refresh token from Redis.
func (s *TokenStore) DeleteRefreshToken(ctx context.Context, tokenID string) error {
	return s.cache.Delete(ctx, refreshTokenKeyPrefix+tokenID)
}

// BlacklistAccessToken adds an access token to the blacklist until it expires.
func (s *TokenStore) BlacklistAccessToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return s.cache.Set(ctx, accessTokenKeyPrefix+tokenID, []byte("1"), ttl)
}

// IsAccessTokenBlacklisted checks if an access token is blacklisted.
// Redis failures read as not blacklisted.
func (s *TokenStore) IsAccessTokenBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	data, _ := s.cache.Get(ctx, accessTokenKeyPrefix+tokenID)
	return data != nil, nil
}

// RevokeUser rejects every access token of userID for one access token lifetime.
// Refresh is refused separately by the user status check.
func (s *TokenStore) RevokeUser(ctx context.Context, userID uuid.UUID) error {
	return s.cache.Set(ctx, revokedUserKeyPrefix+userID.String(), []byte("1"), AccessTokenExpiry)
}

// RestoreUser lifts a RevokeUser marker.
func (s *TokenStore) RestoreUser(ctx context.Context, userID uuid.UUID) error {
	return s.cache.Delete(ctx, revokedUserKeyPrefix+userID.String())
}

// IsUserRevoked reports whether userID's access tokens are currently rejected.
func (s *TokenStore) IsUserRevoked(ctx context.Context, userID uuid.UUID) (bool, error) {
	data, _ := s.cache.Get(ctx, revokedUserKeyPrefix+userID.String())
	return data != nil, nil
}
