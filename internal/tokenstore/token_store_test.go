package tokenstore

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/verdantlabs/plantdash/internal/config"
	"github.com/verdantlabs/plantdash/internal/db"
	"github.com/verdantlabs/plantdash/internal/gwerrors"
	"github.com/verdantlabs/plantdash/internal/models"
)

type failingRepo struct{}

func (failingRepo) GetAccessToken(context.Context, string) (models.AccessToken, error) {
	return models.AccessToken{}, fmt.Errorf("connection refused")
}

func (failingRepo) SetAccessToken(context.Context, models.AccessToken) error {
	return fmt.Errorf("connection refused")
}

func (failingRepo) RemoveAccessToken(context.Context, string) error {
	return fmt.Errorf("connection refused")
}

func newTestStore(t *testing.T, options ...TokenStoreOption) *TokenStore {
	adapter, err := db.NewMockRedisAdapter()
	require.NoError(t, err)
	ts, err := NewTokenStore(append([]TokenStoreOption{WithTokenRepository(adapter)}, options...)...)
	require.NoError(t, err)
	return ts
}

func TestSetGetClear(t *testing.T) {
	ctx := context.Background()
	ts := newTestStore(t)

	_, err := ts.Get(ctx)
	assert.ErrorIs(t, err, gwerrors.ErrTokenNotFound)

	require.NoError(t, ts.Set(ctx, "T1"))
	value, err := ts.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "T1", value)

	require.NoError(t, ts.Set(ctx, "T2"))
	value, err = ts.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "T2", value)

	require.NoError(t, ts.Clear(ctx))
	_, err = ts.Get(ctx)
	assert.ErrorIs(t, err, gwerrors.ErrTokenNotFound)
}

func TestSetEmptyClears(t *testing.T) {
	ctx := context.Background()
	ts := newTestStore(t)
	require.NoError(t, ts.Set(ctx, "T1"))

	require.NoError(t, ts.Set(ctx, ""))

	_, err := ts.Get(ctx)
	assert.ErrorIs(t, err, gwerrors.ErrTokenNotFound)
}

func TestClearWhenEmpty(t *testing.T) {
	ts := newTestStore(t)
	assert.NoError(t, ts.Clear(context.Background()))
}

func TestKeyFromConfig(t *testing.T) {
	ts := newTestStore(t, WithConfig(config.TokenStorageConfig{Key: "other_key"}))
	assert.Equal(t, "other_key", ts.Key())

	ts = newTestStore(t, WithConfig(config.TokenStorageConfig{}))
	assert.Equal(t, config.DefaultTokenStorageKey, ts.Key())

	ts = newTestStore(t)
	assert.Equal(t, config.DefaultTokenStorageKey, ts.Key())
}

func TestStoresAreIsolatedByKey(t *testing.T) {
	ctx := context.Background()
	adapter, err := db.NewMockRedisAdapter()
	require.NoError(t, err)
	first, err := NewTokenStore(WithTokenRepository(adapter), WithKey("first"))
	require.NoError(t, err)
	second, err := NewTokenStore(WithTokenRepository(adapter), WithKey("second"))
	require.NoError(t, err)

	require.NoError(t, first.Set(ctx, "T1"))

	_, err = second.Get(ctx)
	assert.ErrorIs(t, err, gwerrors.ErrTokenNotFound)
}

func TestStorageErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	ts, err := NewTokenStore(WithTokenRepository(failingRepo{}))
	require.NoError(t, err)

	_, err = ts.Get(ctx)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, gwerrors.ErrTokenNotFound)
	assert.Error(t, ts.Set(ctx, "T1"))
	assert.Error(t, ts.Clear(ctx))
}

func TestNewTokenStoreValidation(t *testing.T) {
	_, err := NewTokenStore()
	assert.Error(t, err)

	_, err = NewTokenStore(WithTokenRepository(failingRepo{}), WithKey(""))
	assert.Error(t, err)
}
