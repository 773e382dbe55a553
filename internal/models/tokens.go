package models

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// AccessToken is the bearer credential used to authorize calls to the backend API.
// Subject and ExpiresAt are only informative: they are read from the token without
// verifying it and stay empty for opaque tokens.
type AccessToken struct {
	// Storage key the token is saved under
	Key   string
	Value string
	// Subject claim of the token, if the token is a JWT
	Subject string
	// Expiry claim of the token, if the token is a JWT
	ExpiresAt time.Time
	// UTC timestamp of the last time the token was written
	UpdatedAt time.Time
}

// NewAccessToken creates the token stored under key, decoding the informative claims if possible.
func NewAccessToken(key, value string) AccessToken {
	token := AccessToken{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now().UTC(),
	}
	claims := jwt.RegisteredClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(value, &claims)
	if err != nil {
		return token
	}
	token.Subject = claims.Subject
	if claims.ExpiresAt != nil {
		token.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	return token
}

// Encrypt encrypts the value of the token if an encryptor is provided
func (t AccessToken) Encrypt(enc Encryptor) (AccessToken, error) {
	if enc == nil {
		return t, nil
	}
	encValue, err := enc.Encrypt(t.Value)
	if err != nil {
		return AccessToken{}, err
	}
	output := t
	output.Value = encValue
	return output, nil
}

// Decrypt decrypts the value of the token if an encryptor is provided
func (t AccessToken) Decrypt(enc Encryptor) (AccessToken, error) {
	if enc == nil {
		return t, nil
	}
	decValue, err := enc.Decrypt(t.Value)
	if err != nil {
		return AccessToken{}, err
	}
	output := t
	output.Value = decValue
	return output, nil
}

// Expired reports whether the expiry claim is in the past. Tokens without a known expiry never
// report as expired, the backend decides.
func (t AccessToken) Expired() bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().UTC().After(t.ExpiresAt)
}

// String implements the Stringer interface for printing the token in logs
func (t AccessToken) String() string {
	return fmt.Sprintf(
		"AccessToken<Key: %s, Value: redacted, Subject: %s, ExpiresAt: %s, UpdatedAt: %s>",
		t.Key,
		t.Subject,
		t.ExpiresAt,
		t.UpdatedAt,
	)
}
