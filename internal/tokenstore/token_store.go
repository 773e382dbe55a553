package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/verdantlabs/plantdash/internal/config"
	"github.com/verdantlabs/plantdash/internal/gwerrors"
	"github.com/verdantlabs/plantdash/internal/models"
)

// TokenStore persists the single current access token of the dashboard under a fixed key.
type TokenStore struct {
	key       string
	tokenRepo models.TokenRepository
}

// Get returns the raw value of the current token, gwerrors.ErrTokenNotFound if there is none.
func (ts *TokenStore) Get(ctx context.Context) (string, error) {
	token, err := ts.Current(ctx)
	if err != nil {
		return "", err
	}
	return token.Value, nil
}

// Current returns the current token with its decoded claims.
func (ts *TokenStore) Current(ctx context.Context) (models.AccessToken, error) {
	token, err := ts.tokenRepo.GetAccessToken(ctx, ts.key)
	if err != nil {
		return models.AccessToken{}, err
	}
	if token.Value == "" {
		return models.AccessToken{}, gwerrors.ErrTokenNotFound
	}
	return token, nil
}

// Set replaces the current token. Setting an empty value clears the store.
func (ts *TokenStore) Set(ctx context.Context, value string) error {
	if value == "" {
		return ts.Clear(ctx)
	}
	token := models.NewAccessToken(ts.key, value)
	err := ts.tokenRepo.SetAccessToken(ctx, token)
	if err != nil {
		slog.Error("TOKEN STORE", "message", "SetAccessToken failed", "error", err)
		return err
	}
	slog.Debug("TOKEN STORE", "message", "token replaced", "token", token)
	return nil
}

func (ts *TokenStore) Clear(ctx context.Context) error {
	err := ts.tokenRepo.RemoveAccessToken(ctx, ts.key)
	if err != nil && !errors.Is(err, gwerrors.ErrTokenNotFound) {
		slog.Error("TOKEN STORE", "message", "RemoveAccessToken failed", "error", err)
		return err
	}
	return nil
}

func (ts *TokenStore) Key() string {
	return ts.key
}

type TokenStoreOption func(*TokenStore) error

func WithKey(key string) TokenStoreOption {
	return func(ts *TokenStore) error {
		ts.key = key
		return nil
	}
}

func WithConfig(storageConfig config.TokenStorageConfig) TokenStoreOption {
	return func(ts *TokenStore) error {
		ts.key = storageConfig.StorageKey()
		return nil
	}
}

func WithTokenRepository(repo models.TokenRepository) TokenStoreOption {
	return func(ts *TokenStore) error {
		ts.tokenRepo = repo
		return nil
	}
}

// NewTokenStore creates a new TokenStore, the key defaults to config.DefaultTokenStorageKey.
func NewTokenStore(options ...TokenStoreOption) (*TokenStore, error) {
	ts := TokenStore{key: config.DefaultTokenStorageKey}
	for _, opt := range options {
		err := opt(&ts)
		if err != nil {
			return nil, err
		}
	}
	if ts.tokenRepo == nil {
		return nil, fmt.Errorf("token repository is not initialized")
	}
	if ts.key == "" {
		return nil, fmt.Errorf("the token storage key cannot be empty")
	}
	return &ts, nil
}
