package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/verdantlabs/plantdash/internal/gwerrors"
	"github.com/verdantlabs/plantdash/internal/models"
)

const accessTokenPrefix string = "accessToken"

// GetAccessToken reads the access token saved under key from Redis, decrypting it if necessary
func (r RedisAdapter) GetAccessToken(ctx context.Context, key string) (models.AccessToken, error) {
	output := models.AccessToken{}
	raw, err := r.rdb.HGetAll(
		ctx,
		r.accessTokenKey(key),
	).Result()
	if err != nil {
		return output, err
	}

	err = r.deserializeToStruct(raw, &output)
	if err != nil {
		if err == gwerrors.ErrMissingDBResource {
			err = gwerrors.ErrTokenNotFound
		}
		return models.AccessToken{}, err
	}

	decToken, err := output.Decrypt(r.encryptor)
	if err != nil {
		return models.AccessToken{}, err
	}
	return decToken, nil
}

// SetAccessToken writes the access token to Redis under its key, replacing any previous token
func (r RedisAdapter) SetAccessToken(ctx context.Context, token models.AccessToken) error {
	if token.Key == "" {
		return fmt.Errorf("the access token has no storage key")
	}
	encToken, err := token.Encrypt(r.encryptor)
	if err != nil {
		return err
	}

	slog.Debug(
		"TOKEN STORE",
		"message",
		"saving token",
		"token",
		token,
	)

	key := r.accessTokenKey(token.Key)
	// remove the old hash so fields of the previous token never leak into the new one
	err = r.rdb.Del(ctx, key).Err()
	if err != nil {
		return err
	}
	return r.rdb.HSet(
		ctx,
		key,
		r.serializeStruct(encToken)...,
	).Err()
}

// RemoveAccessToken removes the access token saved under key from Redis
func (r RedisAdapter) RemoveAccessToken(ctx context.Context, key string) error {
	return r.rdb.Del(
		ctx,
		r.accessTokenKey(key),
	).Err()
}

func (RedisAdapter) accessTokenKey(key string) string {
	return accessTokenPrefix + ":" + key
}
