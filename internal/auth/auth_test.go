package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardvault/internal/cache"
	"cardvault/internal/model"
)

func testUser() *model.User {
	return &model.User{ID: uuid.New(), Email: "user@example.com", Role: model.RoleAdmin}
}

func TestJWTService_AccessToken(t *testing.T) {
	svc := NewJWTService("test-secret")
	user := testUser()

	token, err := svc.GenerateAccessToken(user)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.UserID)
	assert.Equal(t, model.RoleAdmin, claims.Role)
	assert.Equal(t, TokenTypeAccess, claims.Type)
	assert.NotEmpty(t, claims.ID)

	_, err = svc.ValidateRefreshToken(token)
	assert.Error(t, err, "an access token is not a refresh token")

	id, err := claims.UserUUID()
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)
}

func TestJWTService_RefreshToken(t *testing.T) {
	svc := NewJWTService("test-secret")

	tokenID, token, err := svc.GenerateRefreshToken(testUser())
	require.NoError(t, err)

	extracted, err := svc.ExtractTokenID(token)
	require.NoError(t, err)
	assert.Equal(t, tokenID, extracted)

	claims, err := svc.ValidateRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeRefresh, claims.Type)
}

func TestJWTService_Rejects(t *testing.T) {
	svc := NewJWTService("test-secret")
	other := NewJWTService("other-secret")

	foreign, err := other.GenerateAccessToken(testUser())
	require.NoError(t, err)
	_, err = svc.ValidateToken(foreign)
	assert.Error(t, err)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID: uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	signed, err := expired.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = svc.ValidateToken(signed)
	assert.Error(t, err)

	_, err = svc.ValidateToken("garbage")
	assert.Error(t, err)
}

func TestTokenStore(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	store := NewTokenStore(cache.NewFromRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()})))

	session := Session{UserID: uuid.New(), Role: model.RoleUser}
	require.NoError(t, store.StoreRefreshToken(ctx, "tid", session, time.Hour))
	got, err := store.GetRefreshToken(ctx, "tid")
	require.NoError(t, err)
	assert.Equal(t, session, *got)

	require.NoError(t, store.DeleteRefreshToken(ctx, "tid"))
	_, err = store.GetRefreshToken(ctx, "tid")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	blacklisted, err := store.IsAccessTokenBlacklisted(ctx, "jti")
	require.NoError(t, err)
	assert.False(t, blacklisted)

	require.NoError(t, store.BlacklistAccessToken(ctx, "jti", time.Minute))
	blacklisted, err = store.IsAccessTokenBlacklisted(ctx, "jti")
	require.NoError(t, err)
	assert.True(t, blacklisted)

	mr.FastForward(2 * time.Minute)
	blacklisted, _ = store.IsAccessTokenBlacklisted(ctx, "jti")
	assert.False(t, blacklisted)
}

func TestTokenStore_UserRevocation(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	store := NewTokenStore(cache.NewFromRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()})))
	userID := uuid.New()

	revoked, err := store.IsUserRevoked(ctx, userID)
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, store.RevokeUser(ctx, userID))
	revoked, _ = store.IsUserRevoked(ctx, userID)
	assert.True(t, revoked)

	other, _ := store.IsUserRevoked(ctx, uuid.New())
	assert.False(t, other)

	require.NoError(t, store.RestoreUser(ctx, userID))
	revoked, _ = store.IsUserRevoked(ctx, userID)
	assert.False(t, revoked)

	require.NoError(t, store.RevokeUser(ctx, userID))
	mr.FastForward(AccessTokenExpiry + time.Second)
	revoked, _ = store.IsUserRevoked(ctx, userID)
	assert.False(t, revoked)
}
