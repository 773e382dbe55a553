package gwerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSessionExpired(t *testing.T) {
	cause := fmt.Errorf("refresh returned 401")
	err := NewSessionExpiredError("refresh failed", cause)

	assert.True(t, IsSessionExpired(err))
	assert.True(t, IsSessionExpired(fmt.Errorf("listing plants: %w", err)))
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.ErrorIs(t, err, cause)
}

func TestIsSessionExpiredOtherErrors(t *testing.T) {
	assert.False(t, IsSessionExpired(nil))
	assert.False(t, IsSessionExpired(errors.New("boom")))
	assert.False(t, IsSessionExpired(ErrSessionExpired))
	assert.False(t, IsSessionExpired(&GatewayError{Code: "OTHER", Message: "other"}))
}

func TestGatewayErrorMessage(t *testing.T) {
	err := NewSessionExpiredError("retry still unauthorized", nil)

	assert.Equal(t, "SESSION_EXPIRED: retry still unauthorized", err.Error())
}
