package models

import (
	"context"
)

// TokenRepository represents the interface used to persist access tokens
type TokenRepository interface {
	AccessTokenGetter
	AccessTokenSetter
	AccessTokenRemover
}

type AccessTokenGetter interface {
	GetAccessToken(ctx context.Context, key string) (AccessToken, error)
}

type AccessTokenSetter interface {
	SetAccessToken(ctx context.Context, token AccessToken) error
}

type AccessTokenRemover interface {
	RemoveAccessToken(ctx context.Context, key string) error
}
