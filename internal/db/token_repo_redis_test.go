package db

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/verdantlabs/plantdash/internal/config"
	"github.com/verdantlabs/plantdash/internal/gwerrors"
	"github.com/verdantlabs/plantdash/internal/models"
)

// Check that RedisAdapter implements TokenRepository.
// This test would fail to compile otherwise.
func TestRedisAdapterIsTokenRepository(t *testing.T) {
	rdb := RedisAdapter{}
	_ = models.TokenRepository(rdb)
}

func jwtValue(t *testing.T) string {
	claims := jwt.RegisteredClaims{
		Subject:   "gardener@example.org",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	value, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-signing-key"))
	require.NoError(t, err)
	return value
}

func TestAccessTokenRoundTrip(t *testing.T) {
	ctx := context.Background()
	adapter, err := NewMockRedisAdapter()
	require.NoError(t, err)
	token := models.NewAccessToken("plantdash_access_token", jwtValue(t))

	err = adapter.SetAccessToken(ctx, token)
	require.NoError(t, err)
	stored, err := adapter.GetAccessToken(ctx, token.Key)
	require.NoError(t, err)

	assert.Equal(t, token.Value, stored.Value)
	assert.Equal(t, token.Subject, stored.Subject)
	assert.True(t, token.ExpiresAt.Equal(stored.ExpiresAt))
	assert.True(t, token.UpdatedAt.Equal(stored.UpdatedAt))
}

func TestAccessTokenEncryptedAtRest(t *testing.T) {
	ctx := context.Background()
	client := NewMockRedisClient()
	adapter, err := NewRedisAdapter(WithRedisClient(client), WithEncryption("1234567890abcdef1234567890abcdef"))
	require.NoError(t, err)

	err = adapter.SetAccessToken(ctx, models.NewAccessToken("key", "T1"))
	require.NoError(t, err)

	raw, err := client.HGetAll(ctx, "accessToken:key").Result()
	require.NoError(t, err)
	assert.NotEqual(t, "T1", raw["Value"])
	stored, err := adapter.GetAccessToken(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, "T1", stored.Value)
}

func TestAccessTokenReplaced(t *testing.T) {
	ctx := context.Background()
	adapter, err := NewMockRedisAdapter()
	require.NoError(t, err)

	require.NoError(t, adapter.SetAccessToken(ctx, models.NewAccessToken("key", jwtValue(t))))
	require.NoError(t, adapter.SetAccessToken(ctx, models.NewAccessToken("key", "T2")))

	stored, err := adapter.GetAccessToken(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, "T2", stored.Value)
	assert.Empty(t, stored.Subject)
}

func TestAccessTokenMissing(t *testing.T) {
	adapter, err := NewMockRedisAdapter()
	require.NoError(t, err)

	_, err = adapter.GetAccessToken(context.Background(), "missing")
	assert.ErrorIs(t, err, gwerrors.ErrTokenNotFound)
}

func TestRemoveAccessToken(t *testing.T) {
	ctx := context.Background()
	adapter, err := NewMockRedisAdapter()
	require.NoError(t, err)
	require.NoError(t, adapter.SetAccessToken(ctx, models.NewAccessToken("key", "T1")))

	require.NoError(t, adapter.RemoveAccessToken(ctx, "key"))

	_, err = adapter.GetAccessToken(ctx, "key")
	assert.ErrorIs(t, err, gwerrors.ErrTokenNotFound)
}

func TestSetAccessTokenWithoutKey(t *testing.T) {
	adapter, err := NewMockRedisAdapter()
	require.NoError(t, err)

	err = adapter.SetAccessToken(context.Background(), models.AccessToken{Value: "T1"})
	assert.Error(t, err)
}

func TestNewRedisAdapterFromConfig(t *testing.T) {
	adapter, err := NewRedisAdapter(WithRedisConfig(config.RedisConfig{Type: config.DBTypeRedisMock}))
	require.NoError(t, err)
	assert.NoError(t, adapter.Ping(context.Background()))

	_, err = NewRedisAdapter(WithRedisConfig(config.RedisConfig{Type: "postgres"}))
	assert.Error(t, err)

	_, err = NewRedisAdapter()
	assert.Error(t, err)
}
